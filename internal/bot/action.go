package bot

import (
	"strings"
)

type CallbackAction string

const (
	CallbackActionVerifyPayment  CallbackAction = "verify_payment"
	CallbackActionApprovePayment CallbackAction = "approve_payment"
	CallbackActionRejectPayment  CallbackAction = "reject_payment"
)

func (a CallbackAction) String() string {
	return string(a)
}

func (a CallbackAction) DataMatches(data string) bool {
	cringePrefix := "\f" + a.String()
	return data == cringePrefix || strings.HasPrefix(data, cringePrefix+"|")
}

// Payload returns the part of the callback data after the action marker.
func (a CallbackAction) Payload(data string) string {
	_, payload, _ := strings.Cut(data, "|")
	return payload
}
