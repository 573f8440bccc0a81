package models

// GlobalState is a singleton row holding poller bookkeeping so the bot
// resumes from the last processed update after a restart.
type GlobalState struct {
	ID           int `gorm:"primaryKey"`
	LastUpdateID int
}
