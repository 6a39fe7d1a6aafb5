package bus

type EventId uint8

const (
	SnapshotEvent EventId = iota
	OrderEvent
	OrderRejectedEvent
	FillEvent
	PositionEvent
	EquityEvent
)

func (id EventId) String() string {
	switch id {
	case SnapshotEvent:
		return "snapshot"
	case OrderEvent:
		return "order"
	case OrderRejectedEvent:
		return "order_rejected"
	case FillEvent:
		return "fill"
	case PositionEvent:
		return "position"
	case EquityEvent:
		return "equity"
	default:
		return "unknown"
	}
}
