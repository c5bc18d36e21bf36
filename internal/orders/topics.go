package orders

const (
	TopicNotifications = "shop.notifications"
)

// Partition key = order_id, supaya notifikasi 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
