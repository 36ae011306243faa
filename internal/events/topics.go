package events

// Topic constants for domain events emitted by the register.
const (
	TopicSessionOpened      = "session.opened"
	TopicTransactionSettled = "transaction.settled"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicSessionOpened,
		TopicTransactionSettled,
	}
}
