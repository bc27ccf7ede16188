package recommend

// SimilarityMatrix is the narrow collaborator interface onto the
// recommendation similarity-matrix primitive (out of scope as a
// component in its own right, per spec.md §1). Store methods that
// update it receive it as a parameter, mirroring the original's
// RecommendMatrix* argument to addVisitItem/addPurchaseItem.
type SimilarityMatrix interface {
	Observe(itemIDs []ItemID)
}

// SimilarityBuilder drives the batch rebuild/flush of the purchase
// similarity matrix at the end of an order-bundle build pass and from
// the cron tick.
type SimilarityBuilder interface {
	NeedRebuildPurchaseSimMatrix() bool
	BuildPurchaseSimMatrix() error
	FlushRecommendMatrix() error
}

// ItemIDGenerator resolves an external item id string to the internal
// ItemID space, assigning one on first use.
type ItemIDGenerator interface {
	StrIDToItemID(itemIDStr string) (ItemID, bool)
}

// UserStore holds user records.
type UserStore interface {
	AddUser(u User) error
	UpdateUser(u User) error
	RemoveUser(userID string) error
	Flush() error
}

// VisitStore records item visits within a session and recommended-item
// click-throughs.
type VisitStore interface {
	AddVisitItem(sessionID, userID string, itemID ItemID, matrix SimilarityMatrix) error
	VisitRecommendItem(userID string, itemID ItemID) error
	Flush() error
}

// PurchaseStore records a user's purchased item set for one order,
// updating the given similarity matrix as a side effect.
type PurchaseStore interface {
	AddPurchaseItem(userID string, itemIDs []ItemID, matrix SimilarityMatrix) error
	Flush() error
}

// CartStore holds the current shopping cart contents per user.
type CartStore interface {
	UpdateCart(userID string, itemIDs []ItemID) error
	Flush() error
}

// OrderStore records completed orders for frequent-itemset mining.
type OrderStore interface {
	AddOrder(itemIDs []ItemID) error
	BuildFreqItemsets() error
	Flush() error
}

// EventStore records/unrecords arbitrary named events against a user's
// interaction with an item (e.g. "favorite", "share").
type EventStore interface {
	AddEvent(event, userID string, itemID ItemID) error
	RemoveEvent(event, userID string, itemID ItemID) error
}

// RateStore records/unrecords a user's explicit rating of an item.
type RateStore interface {
	AddRate(userID string, itemID ItemID, rate float64) error
	RemoveRate(userID string, itemID ItemID) error
}

// PurchaseCounter tracks, per query string, how many times each item
// was clicked after being served for that query.
type PurchaseCounter struct {
	Clicks map[ItemID]int
}

// Click records one click-through of itemID for the counter's query.
func (c *PurchaseCounter) Click(itemID ItemID) {
	if c.Clicks == nil {
		c.Clicks = make(map[ItemID]int)
	}
	c.Clicks[itemID]++
}

// QueryPurchaseCounterStore holds per-query purchase counters used to
// weight future query-to-item recommendations.
type QueryPurchaseCounterStore interface {
	Get(query string) (PurchaseCounter, bool)
	Update(query string, counter PurchaseCounter) error
	Flush() error
}
