package bot

import "testing"

func TestCallbackActionDataMatches(t *testing.T) {
	tests := []struct {
		action CallbackAction
		data   string
		want   bool
	}{
		{CallbackActionVerifyPayment, "\fverify_payment", true},
		{CallbackActionVerifyPayment, "\fverify_payment|", true},
		{CallbackActionApprovePayment, "\fapprove_payment|abc-123", true},
		{CallbackActionApprovePayment, "\freject_payment|abc-123", false},
		{CallbackActionApprovePayment, "approve_payment|abc-123", false},
		{CallbackActionRejectPayment, "\freject_payment_extra", false},
	}

	for _, tc := range tests {
		if got := tc.action.DataMatches(tc.data); got != tc.want {
			t.Fatalf("%s.DataMatches(%q) = %v, want %v", tc.action, tc.data, got, tc.want)
		}
	}
}

func TestCallbackActionPayload(t *testing.T) {
	if got := CallbackActionApprovePayment.Payload("\fapprove_payment|abc-123"); got != "abc-123" {
		t.Fatalf("unexpected payload %q", got)
	}
	if got := CallbackActionVerifyPayment.Payload("\fverify_payment"); got != "" {
		t.Fatalf("expected empty payload, got %q", got)
	}
}
