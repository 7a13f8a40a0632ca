package assets

const (
	TopicPaymentAuthorized = "order.payment.authorized"
	TopicAssetsRendered    = "order.assets.rendered"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
