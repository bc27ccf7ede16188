package recommend

import (
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/directory"
	"github.com/sf1r/coreengine/pkg/scd"
)

func parseInt(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return int(n), err
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// Config carries the per-collection tunables a Service needs.
type Config struct {
	CollectionName string

	// CronExpr is a standard 5-field cron expression; the service
	// ticks its build-between-builds flush whenever it matches,
	// checked at minute granularity.
	CronExpr string

	FreqItemSetEnable bool
}

// Service drives one collection's recommend data: user/visit/purchase/
// cart/event/rate tracking plus the bulk BuildCollection bundle-import
// pass and its cron-driven incremental flush.
type Service struct {
	cfg Config

	userDir  vfs.Dir
	orderDir vfs.Dir
	rotator  *directory.Rotator

	users     UserStore
	items     ItemIDGenerator
	visits    VisitStore
	purchases PurchaseStore
	carts     CartStore
	orders    OrderStore
	events    EventStore
	rates     RateStore
	counters  QueryPurchaseCounterStore

	visitMatrix           SimilarityMatrix
	purchaseMatrix        SimilarityMatrix
	purchaseCoVisitMatrix SimilarityMatrix
	similarity            SimilarityBuilder

	// buildMu serializes BuildCollection against the cron tick's
	// flush, matching the original's buildCollectionMutex_.
	buildMu sync.Mutex

	cron   *cron.Cron
	entry  cron.EntryID
	cronMu sync.Mutex
}

// Collaborators bundles every narrow dependency a Service needs, kept
// separate from Config so tests can substitute in-memory stores
// without repeating every Config field.
type Collaborators struct {
	UserDir, OrderDir vfs.Dir
	Rotator           *directory.Rotator

	Users     UserStore
	Items     ItemIDGenerator
	Visits    VisitStore
	Purchases PurchaseStore
	Carts     CartStore
	Orders    OrderStore
	Events    EventStore
	Rates     RateStore
	Counters  QueryPurchaseCounterStore

	VisitMatrix           SimilarityMatrix
	PurchaseMatrix        SimilarityMatrix
	PurchaseCoVisitMatrix SimilarityMatrix
	Similarity            SimilarityBuilder
}

// New builds a Service. It does not start the cron tick; call Start
// for that.
func New(cfg Config, c Collaborators) *Service {
	return &Service{
		cfg:                   cfg,
		userDir:               c.UserDir,
		orderDir:              c.OrderDir,
		rotator:               c.Rotator,
		users:                 c.Users,
		items:                 c.Items,
		visits:                c.Visits,
		purchases:             c.Purchases,
		carts:                 c.Carts,
		orders:                c.Orders,
		events:                c.Events,
		rates:                 c.Rates,
		counters:              c.Counters,
		visitMatrix:           c.VisitMatrix,
		purchaseMatrix:        c.PurchaseMatrix,
		purchaseCoVisitMatrix: c.PurchaseCoVisitMatrix,
		similarity:            c.Similarity,
	}
}

func logf(format string, args ...interface{}) {
	log.Printf("recommend: "+format, args...)
}

// AddUser inserts a new user record.
func (s *Service) AddUser(u User) error {
	return s.users.AddUser(u)
}

// UpdateUser merges properties into an existing user record.
func (s *Service) UpdateUser(u User) error {
	return s.users.UpdateUser(u)
}

// RemoveUser deletes a user record.
func (s *Service) RemoveUser(userID string) error {
	return s.users.RemoveUser(userID)
}

// VisitItem records one item view within a session, and optionally a
// recommended-item click-through.
func (s *Service) VisitItem(sessionID, userID, itemIDStr string, isRecItem bool) error {
	if sessionID == "" {
		return errors.New("visit item: session id is empty")
	}
	itemID, ok := s.items.StrIDToItemID(itemIDStr)
	if !ok {
		return errors.Errorf("visit item: unknown item id %q", itemIDStr)
	}
	if err := s.visits.AddVisitItem(sessionID, userID, itemID, s.visitMatrix); err != nil {
		return err
	}
	if isRecItem {
		if err := s.visits.VisitRecommendItem(userID, itemID); err != nil {
			return errors.Wrap(err, "visit recommend item")
		}
	}
	return nil
}

// PurchaseItem records a completed order's item set against the
// purchase matrix.
func (s *Service) PurchaseItem(userID, orderID string, items []OrderItem) error {
	return s.saveOrder(userID, orderID, items, s.purchaseMatrix)
}

// UpdateShoppingCart replaces a user's cart contents.
func (s *Service) UpdateShoppingCart(userID string, items []OrderItem) error {
	itemIDs, err := s.convertOrderItems(items)
	if err != nil {
		return err
	}
	return s.carts.UpdateCart(userID, itemIDs)
}

// TrackEvent adds or removes a named event for a user/item pair.
func (s *Service) TrackEvent(isAdd bool, event, userID, itemIDStr string) error {
	itemID, ok := s.items.StrIDToItemID(itemIDStr)
	if !ok {
		return errors.Errorf("track event: unknown item id %q", itemIDStr)
	}
	if isAdd {
		return s.events.AddEvent(event, userID, itemID)
	}
	return s.events.RemoveEvent(event, userID, itemID)
}

// RateItem adds or removes an explicit user rating.
func (s *Service) RateItem(isAdd bool, userID, itemIDStr string, rate float64) error {
	itemID, ok := s.items.StrIDToItemID(itemIDStr)
	if !ok {
		return errors.Errorf("rate item: unknown item id %q", itemIDStr)
	}
	if isAdd {
		return s.rates.AddRate(userID, itemID, rate)
	}
	return s.rates.RemoveRate(userID, itemID)
}

func (s *Service) convertOrderItems(items []OrderItem) ([]ItemID, error) {
	itemIDs := make([]ItemID, 0, len(items))
	for _, it := range items {
		itemID, ok := s.items.StrIDToItemID(it.ItemID)
		if !ok {
			return nil, errors.Errorf("unknown item id %q", it.ItemID)
		}
		itemIDs = append(itemIDs, itemID)
	}
	return itemIDs, nil
}

// saveOrder converts an order's line items to internal ids, records
// the order, updates the given similarity matrix, and updates the
// per-query purchase counters.
func (s *Service) saveOrder(userID, orderID string, items []OrderItem, matrix SimilarityMatrix) error {
	if len(items) == 0 {
		logf("empty order for user %v, order %v", userID, orderID)
		return errors.New("empty order")
	}

	itemIDs, err := s.convertOrderItems(items)
	if err != nil {
		return err
	}

	// Each of the three updates below is attempted independently: a
	// failure in one must not prevent the others from running, since
	// they record distinct collaborator state.
	var firstErr error
	if err := s.orders.AddOrder(itemIDs); err != nil {
		logf("save order: user %v order %v: add order failed: %v", userID, orderID, err)
		firstErr = errors.Wrap(err, "add order")
	}
	if err := s.purchases.AddPurchaseItem(userID, itemIDs, matrix); err != nil {
		logf("save order: user %v order %v: add purchase item failed: %v", userID, orderID, err)
		if firstErr == nil {
			firstErr = errors.Wrap(err, "add purchase item")
		}
	}
	if err := s.insertPurchaseCounter(items, itemIDs); err != nil {
		logf("save order: user %v order %v: purchase counter failed: %v", userID, orderID, err)
		if firstErr == nil {
			firstErr = errors.Wrapf(err, "save order: user %v order %v", userID, orderID)
		}
	}
	return firstErr
}

func (s *Service) insertPurchaseCounter(items []OrderItem, itemIDs []ItemID) error {
	if s.counters == nil {
		return nil
	}
	var firstErr error
	for i, it := range items {
		if it.Query == "" {
			continue
		}
		counter, ok := s.counters.Get(it.Query)
		if !ok {
			firstErr = errors.Errorf("query purchase counter unavailable for %q", it.Query)
			continue
		}
		counter.Click(itemIDs[i])
		if err := s.counters.Update(it.Query, counter); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush persists every sub-store's pending writes and, if the
// similarity builder reports it needs one, rebuilds the purchase
// similarity matrix, matching the original's flush_().
func (s *Service) Flush() error {
	logf("flushing recommend data for %v", s.cfg.CollectionName)

	flushers := []func() error{
		s.users.Flush, s.visits.Flush, s.purchases.Flush,
		s.carts.Flush, s.orders.Flush,
	}
	if s.counters != nil {
		flushers = append(flushers, s.counters.Flush)
	}
	for _, flush := range flushers {
		if err := flush(); err != nil {
			return errors.Wrap(err, "flush")
		}
	}

	if s.similarity != nil {
		if s.similarity.NeedRebuildPurchaseSimMatrix() {
			if err := s.similarity.BuildPurchaseSimMatrix(); err != nil {
				return errors.Wrap(err, "build purchase similarity matrix")
			}
		}
		if err := s.similarity.FlushRecommendMatrix(); err != nil {
			return errors.Wrap(err, "flush recommend matrix")
		}
	}

	return nil
}

func backupDataFiles(rotator *directory.Rotator) error {
	if rotator == nil {
		return nil
	}
	return rotator.Backup()
}

func (s *Service) buildFreqItemSet() {
	if !s.cfg.FreqItemSetEnable {
		return
	}
	logf("building frequent item set for %v", s.cfg.CollectionName)
	if err := s.orders.BuildFreqItemsets(); err != nil {
		logf("failed to build frequent item set: %v", err)
	}
}

// BuildCollection backs up the data directory, takes the directory
// guard, then loads every pending user bundle followed by every
// pending order bundle, in that order.
func (s *Service) BuildCollection() error {
	logf("start building recommend collection %v", s.cfg.CollectionName)

	if err := backupDataFiles(s.rotator); err != nil {
		return errors.Wrap(err, "backup data files")
	}

	var guard *directory.Guard
	if s.rotator != nil {
		var err error
		guard, err = directory.AcquireGuard(s.rotator.Current())
		if err != nil {
			return errors.Wrap(err, "directory guard")
		}
		defer guard.Release()
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := s.loadUserBundles(); err != nil {
		if guard != nil {
			guard.Fail()
		}
		return errors.Wrap(err, "load user bundles")
	}
	if err := s.loadOrderBundles(); err != nil {
		if guard != nil {
			guard.Fail()
		}
		return errors.Wrap(err, "load order bundles")
	}

	logf("end recommend collection build %v", s.cfg.CollectionName)
	return nil
}

func (s *Service) loadUserBundles() error {
	if s.userDir == nil {
		return nil
	}
	files, err := scd.Scan(s.userDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	for _, f := range files {
		if err := s.parseUserBundle(f); err != nil {
			logf("failed to parse user bundle %v: %v", f.Raw, err)
		}
	}
	if err := s.users.Flush(); err != nil {
		return err
	}
	if err := scd.Backup(s.userDir, files); err != nil {
		logf("backup of user bundles failed: %v", err)
	}
	return nil
}

func (s *Service) parseUserBundle(fn scd.FileName) error {
	reader, closer, err := scd.OpenBundle(s.userDir, fn.Raw, "USERID")
	if err != nil {
		return err
	}
	defer closer.Close()

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			logf("skipping malformed user record in %v: %v", fn.Raw, err)
			continue
		}

		user, ok := recordToUser(rec)
		if !ok {
			logf("skipping user record with missing USERID in %v", fn.Raw)
			continue
		}

		var applyErr error
		switch fn.Type {
		case scd.Insert:
			applyErr = s.AddUser(user)
		case scd.Update:
			applyErr = s.UpdateUser(user)
		case scd.Delete:
			applyErr = s.RemoveUser(user.ID)
		default:
			applyErr = errors.Errorf("unsupported user bundle type %v", fn.Type)
		}
		if applyErr != nil {
			logf("failed to apply user %v: %v", user.ID, applyErr)
		}
	}
}

func recordToUser(rec scd.Record) (User, bool) {
	user := User{Properties: make(map[string]string)}
	for _, p := range rec.Properties {
		if p.Name == "USERID" {
			user.ID = p.Value
			continue
		}
		user.Properties[p.Name] = p.Value
	}
	return user, user.ID != ""
}

func (s *Service) loadOrderBundles() error {
	if s.orderDir == nil {
		return nil
	}
	files, err := scd.Scan(s.orderDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	for _, f := range files {
		if f.Type != scd.Insert {
			logf("skipping non-insert order bundle %v", f.Raw)
			continue
		}
		if err := s.parseOrderBundle(f); err != nil {
			logf("failed to parse order bundle %v: %v", f.Raw, err)
		}
	}

	if err := s.orders.Flush(); err != nil {
		return err
	}
	if err := s.purchases.Flush(); err != nil {
		return err
	}
	s.buildFreqItemSet()

	if s.similarity != nil {
		if err := s.similarity.BuildPurchaseSimMatrix(); err != nil {
			logf("failed to build purchase similarity matrix: %v", err)
		}
		if err := s.similarity.FlushRecommendMatrix(); err != nil {
			logf("failed to flush recommend matrix: %v", err)
		}
	}

	if err := scd.Backup(s.orderDir, files); err != nil {
		logf("backup of order bundles failed: %v", err)
	}
	return nil
}

func (s *Service) parseOrderBundle(fn scd.FileName) error {
	reader, closer, err := scd.OpenBundle(s.orderDir, fn.Raw, "USERID")
	if err != nil {
		return err
	}
	defer closer.Close()

	pending := make(map[orderKey][]OrderItem)

	flushPending := func() {
		for key, items := range pending {
			if err := s.saveOrder(key.User, key.OrderID, items, s.purchaseCoVisitMatrix); err != nil {
				logf("failed to save order user=%v order=%v: %v", key.User, key.OrderID, err)
			}
		}
		for k := range pending {
			delete(pending, k)
		}
	}

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logf("skipping malformed order record in %v: %v", fn.Raw, err)
			continue
		}

		userID, orderID, item, ok := recordToOrder(rec)
		if !ok {
			logf("skipping order record missing USERID/ITEMID in %v", fn.Raw)
			continue
		}

		if orderID == "" {
			if err := s.saveOrder(userID, orderID, []OrderItem{item}, s.purchaseCoVisitMatrix); err != nil {
				logf("failed to save unordered purchase for user=%v: %v", userID, err)
			}
			continue
		}

		key := orderKey{User: userID, OrderID: orderID}
		if _, exists := pending[key]; !exists && len(pending) >= MaxOrderNum {
			flushPending()
		}
		pending[key] = append(pending[key], item)
	}

	flushPending()
	return nil
}

func recordToOrder(rec scd.Record) (userID, orderID string, item OrderItem, ok bool) {
	fields := make(map[string]string, len(rec.Properties))
	for _, p := range rec.Properties {
		fields[p.Name] = p.Value
	}

	userID = fields["USERID"]
	item.ItemID = fields["ITEMID"]
	if userID == "" || item.ItemID == "" {
		return "", "", OrderItem{}, false
	}

	orderID = fields["ORDERID"]
	item.Date = fields["DATE"]
	item.Query = fields["QUERY"]

	if q := fields["quantity"]; q != "" {
		if n, err := parseInt(q); err == nil {
			item.Quantity = n
		} else {
			logf("bad quantity %q, ignoring", q)
		}
	}
	if p := fields["price"]; p != "" {
		if v, err := parseFloat(p); err == nil {
			item.Price = v
		} else {
			logf("bad price %q, ignoring", p)
		}
	}

	return userID, orderID, item, true
}

// Start launches the cron tick. It returns immediately; the tick runs
// on cron's own goroutine. Stop tears it down.
func (s *Service) Start() error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if s.cfg.CronExpr == "" {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(s.cfg.CronExpr)
	if err != nil {
		return errors.Wrapf(err, "invalid cron expression %q", s.cfg.CronExpr)
	}

	s.cron = cron.New()
	s.entry = s.cron.Schedule(schedule, cron.FuncJob(s.cronTick))
	s.cron.Start()
	return nil
}

// Stop halts the cron tick, if running, and waits for any in-flight
// job to finish.
func (s *Service) Stop() {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}

// cronTick mirrors the original's cronJob_: a non-blocking try-lock
// against the build mutex, skipping the tick entirely (rather than
// queueing behind it) if a BuildCollection pass is in progress.
func (s *Service) cronTick() {
	if !s.buildMu.TryLock() {
		logf("skipping cron tick, build collection in progress for %v", s.cfg.CollectionName)
		return
	}
	defer s.buildMu.Unlock()

	if err := s.Flush(); err != nil {
		logf("cron flush failed: %v", err)
		return
	}
	s.buildFreqItemSet()
}
