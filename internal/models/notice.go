package models

type NoticeLevel string

const (
	NoticeError   NoticeLevel = "error"
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
)

const (
	MessageBlankTask        = "Task cannot be blank."
	MessageTaskDeleted      = "Task deleted successfully."
	MessageDeletionCanceled = "Deletion canceled."
)

// Notice is a one-shot message shown on the next rendered page.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

var (
	BlankTaskNotice = Notice{Level: NoticeError, Message: MessageBlankTask}
	DeletedNotice   = Notice{Level: NoticeSuccess, Message: MessageTaskDeleted}
	CanceledNotice  = Notice{Level: NoticeInfo, Message: MessageDeletionCanceled}
)
