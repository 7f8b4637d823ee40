package circulation

const (
	TopicLoanCreated        = "library.loan.created"
	TopicLoanReturned       = "library.loan.returned"
	TopicDueReminder        = "library.loan.due-reminder"
	TopicOverdueNotice      = "library.loan.overdue"
	TopicReservationExpired = "library.reservation.expired"
)

// Partition key = loan/reservation id, so all events of one record keep
// their order.
func PartitionKey(id string) []byte { return []byte(id) }
