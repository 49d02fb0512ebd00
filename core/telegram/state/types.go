package state

import tele "gopkg.in/telebot.v4"

// State names a conversation step. The zero value is Idle.
type State string

// Idle means no conversation is running.
const Idle State = ""

// Manager tracks one conversation per user.
type Manager interface {
	SetState(userID int64, st State)
	GetState(userID int64) State
	// InProgress reports whether the user is in any non-idle step.
	InProgress(userID int64) bool

	SetTemp(userID int64, key, value string)
	GetTemp(userID int64, key string) (string, bool)
	GetTempString(userID int64, key string) (string, bool)

	// Clear drops the step and every scratch value of the user.
	Clear(userID int64)

	// Handle binds the handler that receives input while a user sits in st.
	Handle(st State, h tele.HandlerFunc)
	// ManagerHandler dispatches c to the handler bound to the sender's step.
	ManagerHandler(c tele.Context) error
}
