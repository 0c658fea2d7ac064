package bot

// User is the sender of a message, or the bot itself for getMe
type User struct {
	ID           int64
	IsBot        bool
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// Chat is the conversation a message belongs to
type Chat struct {
	ID                          int64
	Type                        string
	Title                       string
	Username                    string
	FirstName                   string
	LastName                    string
	AllMembersAreAdministrators bool
}

// Message is the record filled by the last successful poll.
//
// Fields are written one by one while the update is parsed, so after a
// malformed update some of them may still hold values from an earlier one.
type Message struct {
	UpdateID  uint64
	MessageID int64
	Date      int64
	Text      string
	From      User
	Chat      Chat
}

// Clear resets every field
func (m *Message) Clear() {
	*m = Message{}
}

// ChatID returns the chat id in the form SendMessage takes
func (m *Message) ChatID() string {
	return formatInt(m.Chat.ID)
}
