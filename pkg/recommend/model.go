// Package recommend implements the Recommend Task Service: user
// lifecycle management, visit/purchase/cart/event/rate tracking, a
// bulk bundle-driven BuildCollection pass, and a minute-granularity
// cron tick that flushes accumulated activity between builds.
package recommend

// ItemID is the internal identifier an ItemIDGenerator assigns to an
// external item string, analogous to docmodel.DocID on the index
// side.
type ItemID uint32

// User is one user record: an external id plus whatever recommend
// schema properties were present in its bundle record.
type User struct {
	ID         string
	Properties map[string]string
}

// OrderItem is one line item within an order (or, when OrderID is
// empty, a single purchase-covisit event).
type OrderItem struct {
	ItemID   string
	Date     string
	Quantity int
	Price    float64
	Query    string
}

// orderKey groups order line items belonging to the same user+order.
type orderKey struct {
	User    string
	OrderID string
}

// MaxOrderNum bounds how many distinct orders are held in memory
// before an order bundle forces an intermediate flush, matching the
// original's MAX_ORDER_NUM.
const MaxOrderNum = 1000
