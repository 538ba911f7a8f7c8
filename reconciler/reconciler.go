package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const DefaultPageSize = 50

var (
	ErrNoBranch             = errors.New("no branch selected")
	ErrConfirmationRequired = errors.New("area still has tables; confirmation required")
	ErrInvalidCapacity      = errors.New("capacity must be a positive integer")
	ErrUnknownStatus        = errors.New("unknown table status")
)

// TableSource is the backend surface for tables and areas.
type TableSource interface {
	ListTables(ctx context.Context, branchID string, page, limit int) (models.TablePage, error)
	GetTable(ctx context.Context, tableID string) (models.Table, error)
	UpdateTable(ctx context.Context, tableID string, capacity int) (models.Table, error)
	UpdateTableStatus(ctx context.Context, tableID string, status models.TableStatus) (models.Table, error)
	UpdateTableArea(ctx context.Context, tableID string, areaID *string) (models.Table, error)
	ListAreas(ctx context.Context, branchID string) ([]models.Area, error)
	DeleteArea(ctx context.Context, areaID string) error
}

// ReservationSource is the backend surface for reservations.
type ReservationSource interface {
	ListTableReservations(ctx context.Context, tableID string) ([]models.Reservation, error)
	ListBranchReservations(ctx context.Context, branchID string, status models.ReservationStatus) ([]models.Reservation, error)
	AssignTable(ctx context.Context, reservationID, tableID string) (models.Reservation, error)
}

type Options struct {
	BranchID          string
	PageSize          int
	ReservationWindow time.Duration
}

// FloorView is the grouped floor derived from the cache.
type FloorView struct {
	BranchID  string                `json:"branchId"`
	Areas     []AreaGroup           `json:"areas"`
	Pending   []models.Reservation  `json:"pending"`
	Counts    map[DisplayStatus]int `json:"counts"`
	Stale     bool                  `json:"stale"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

type Reconciler struct {
	tables       TableSource
	reservations ReservationSource
	cache        *Cache
	pageSize     int
	window       time.Duration

	mu        sync.Mutex
	branchID  string
	selected  *models.Table
	listeners []func(FloorView)

	wg sync.WaitGroup
}

func New(tables TableSource, reservations ReservationSource, opts Options) *Reconciler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ReservationWindow <= 0 {
		opts.ReservationWindow = DefaultReservationWindow
	}
	return &Reconciler{
		tables:       tables,
		reservations: reservations,
		cache:        NewCache(),
		pageSize:     opts.PageSize,
		window:       opts.ReservationWindow,
		branchID:     opts.BranchID,
	}
}

func tablesPrefix(branchID string) string { return "tables:" + branchID + ":" }

func tablesKey(branchID string, page int) string {
	return tablesPrefix(branchID) + strconv.Itoa(page)
}

func pendingKey(branchID string) string { return "reservations:pending:" + branchID }
func tableResKey(tableID string) string { return "reservations:table:" + tableID }
func areasKey(branchID string) string   { return "areas:" + branchID }

func (r *Reconciler) Cache() *Cache { return r.cache }

func (r *Reconciler) Branch() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.branchID
}

// SetBranch switches the branch the floor shows. Switching drops the cache.
func (r *Reconciler) SetBranch(branchID string) {
	r.mu.Lock()
	changed := r.branchID != branchID
	r.branchID = branchID
	if changed {
		r.selected = nil
	}
	r.mu.Unlock()
	if changed {
		r.cache.Clear()
	}
}

// OnChange registers fn to receive the floor after every change.
func (r *Reconciler) OnChange(fn func(FloorView)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Reconciler) notify() {
	r.mu.Lock()
	listeners := append([]func(FloorView){}, r.listeners...)
	r.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	view := r.Floor()
	for _, fn := range listeners {
		fn(view)
	}
}

// Wait blocks until background refetches started by invalidations finish.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Refresh loads areas, every table page and the pending list.
func (r *Reconciler) Refresh(ctx context.Context) error {
	branchID := r.Branch()
	if branchID == "" {
		return ErrNoBranch
	}
	if err := r.loadAreas(ctx, branchID); err != nil {
		return err
	}
	if err := r.loadTables(ctx, branchID); err != nil {
		return err
	}
	if err := r.loadPending(ctx, branchID); err != nil {
		return err
	}
	r.notify()
	return nil
}

func (r *Reconciler) loadAreas(ctx context.Context, branchID string) error {
	key := areasKey(branchID)
	gen := r.cache.Begin(key)
	areas, err := r.tables.ListAreas(ctx, branchID)
	if err != nil {
		return fmt.Errorf("list areas: %w", err)
	}
	if areas == nil {
		areas = []models.Area{}
	}
	r.cache.Commit(key, gen, areas)
	return nil
}

func (r *Reconciler) loadTables(ctx context.Context, branchID string) error {
	fetched, page := 0, 1
	for {
		key := tablesKey(branchID, page)
		gen := r.cache.Begin(key)
		p, err := r.tables.ListTables(ctx, branchID, page, r.pageSize)
		if err != nil {
			return fmt.Errorf("list tables page %d: %w", page, err)
		}
		if !r.cache.Commit(key, gen, p) {
			utils.InfoLogger.Debugf("Discarded superseded fetch for %s", key)
		}
		fetched += len(p.Items)
		if len(p.Items) == 0 || len(p.Items) < r.pageSize || (p.Total > 0 && fetched >= p.Total) {
			break
		}
		page++
	}
	for _, key := range r.cache.Keys(tablesPrefix(branchID)) {
		if n, err := strconv.Atoi(strings.TrimPrefix(key, tablesPrefix(branchID))); err == nil && n > page {
			r.cache.Delete(key)
		}
	}
	return nil
}

func (r *Reconciler) loadPending(ctx context.Context, branchID string) error {
	key := pendingKey(branchID)
	gen := r.cache.Begin(key)
	pending, err := r.reservations.ListBranchReservations(ctx, branchID, models.ReservationPending)
	if err != nil {
		return fmt.Errorf("list pending reservations: %w", err)
	}
	if pending == nil {
		pending = []models.Reservation{}
	}
	r.cache.Commit(key, gen, pending)
	return nil
}

// Invalidate marks the branch's tables and pending list stale and refetches
// them in the background.
func (r *Reconciler) Invalidate(ctx context.Context) {
	branchID := r.Branch()
	if branchID == "" {
		return
	}
	r.cache.Invalidate(tablesPrefix(branchID))
	r.cache.Invalidate(pendingKey(branchID))
	r.cache.Invalidate(areasKey(branchID))
	r.cache.Invalidate("reservations:table:")
	r.refetch(ctx)
}

func (r *Reconciler) refetch(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Refresh(context.WithoutCancel(ctx)); err != nil {
			utils.ErrorLogger.Errorf("Refetch after invalidation failed: %v", err)
		}
	}()
}

// Tables returns the cached tables in page order, without duplicates.
func (r *Reconciler) Tables() []models.Table {
	branchID := r.Branch()
	prefix := tablesPrefix(branchID)
	keys := r.cache.Keys(prefix)
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(strings.TrimPrefix(keys[i], prefix))
		b, _ := strconv.Atoi(strings.TrimPrefix(keys[j], prefix))
		return a < b
	})
	seen := make(map[string]bool)
	var out []models.Table
	for _, key := range keys {
		p, ok := getAs[models.TablePage](r.cache, key)
		if !ok {
			continue
		}
		for _, t := range p.Items {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}

func (r *Reconciler) Areas() []models.Area {
	areas, ok := getAs[[]models.Area](r.cache, areasKey(r.Branch()))
	if !ok {
		return nil
	}
	return append([]models.Area{}, areas...)
}

func (r *Reconciler) Pending() []models.Reservation {
	pending, _ := getAs[[]models.Reservation](r.cache, pendingKey(r.Branch()))
	return append([]models.Reservation{}, pending...)
}

// Floor derives the grouped view from whatever the cache holds.
func (r *Reconciler) Floor() FloorView {
	branchID := r.Branch()
	tables := r.Tables()
	groups := GroupByArea(tables, r.Areas())
	counts := map[DisplayStatus]int{
		DisplayAvailable:    0,
		DisplayOccupied:     0,
		DisplayOutOfService: 0,
	}
	for _, t := range tables {
		counts[NormalizeStatus(t.Status)]++
	}
	stale := false
	for _, key := range r.cache.Keys(tablesPrefix(branchID)) {
		if !r.cache.Fresh(key) {
			stale = true
			break
		}
	}
	return FloorView{
		BranchID:  branchID,
		Areas:     groups,
		Pending:   r.Pending(),
		Counts:    counts,
		Stale:     stale,
		UpdatedAt: time.Now(),
	}
}

// SelectTable loads the single-table state shown by the edit dialog.
func (r *Reconciler) SelectTable(ctx context.Context, tableID string) (models.Table, error) {
	t, err := r.tables.GetTable(ctx, tableID)
	if err != nil {
		return models.Table{}, err
	}
	r.mu.Lock()
	r.selected = &t
	r.mu.Unlock()
	return t, nil
}

func (r *Reconciler) Selected() (models.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return models.Table{}, false
	}
	return *r.selected, true
}

// EditTable issues the mutations edit asks for, then patches the record
// into every cached page and invalidates. Nothing local changes on failure;
// a partially applied edit only invalidates so the view converges on the
// backend's state.
func (r *Reconciler) EditTable(ctx context.Context, tableID string, edit models.TableEdit) (models.Table, error) {
	if edit.Capacity != nil && *edit.Capacity <= 0 {
		return models.Table{}, ErrInvalidCapacity
	}
	var status models.TableStatus
	if edit.Status != nil {
		var err error
		if status, err = ParseStatus(string(*edit.Status)); err != nil {
			return models.Table{}, err
		}
	}

	var (
		record  models.Table
		applied bool
		err     error
	)
	if edit.ClearArea || edit.AreaID != nil {
		var areaID *string
		if !edit.ClearArea {
			areaID = edit.AreaID
		}
		if record, err = r.tables.UpdateTableArea(ctx, tableID, areaID); err != nil {
			return r.failEdit(ctx, applied, err)
		}
		applied = true
	}
	if edit.Capacity != nil {
		if record, err = r.tables.UpdateTable(ctx, tableID, *edit.Capacity); err != nil {
			return r.failEdit(ctx, applied, err)
		}
		applied = true
	}
	if edit.Status != nil {
		if record, err = r.tables.UpdateTableStatus(ctx, tableID, status); err != nil {
			return r.failEdit(ctx, applied, err)
		}
		applied = true
	}
	if !applied {
		return r.tables.GetTable(ctx, tableID)
	}

	r.applyTable(record)
	r.Invalidate(ctx)
	utils.InfoLogger.Infof("Table %s updated", tableID)
	return record, nil
}

func (r *Reconciler) failEdit(ctx context.Context, applied bool, err error) (models.Table, error) {
	if applied {
		r.Invalidate(ctx)
	}
	return models.Table{}, err
}

// applyTable merges record into the single-table state and every cached
// page that holds it.
func (r *Reconciler) applyTable(record models.Table) {
	if record.AreaID != nil && record.AreaName == "" {
		for _, a := range r.Areas() {
			if a.ID == *record.AreaID {
				record.AreaName = a.Name
			}
		}
	}
	if record.AreaID == nil {
		record.AreaName = ""
	}

	r.mu.Lock()
	if r.selected != nil && r.selected.ID == record.ID {
		merged := record
		r.selected = &merged
	}
	r.mu.Unlock()

	for _, key := range r.cache.Keys(tablesPrefix(r.Branch())) {
		r.cache.Patch(key, func(v any) any {
			p, ok := v.(models.TablePage)
			if !ok {
				return v
			}
			items := make([]models.Table, len(p.Items))
			copy(items, p.Items)
			for i := range items {
				if items[i].ID == record.ID {
					items[i] = record
				}
			}
			p.Items = items
			return p
		})
	}
	r.notify()
}

// MergeCreated adds a newly created reservation to the pending list. Only
// PENDING reservations of the current branch are merged, and an id already
// in the list is left as is.
func (r *Reconciler) MergeCreated(res models.Reservation) bool {
	branchID := r.Branch()
	if res.Status != models.ReservationPending || res.ID == "" {
		return false
	}
	if res.BranchID != "" && branchID != "" && res.BranchID != branchID {
		return false
	}
	if _, ok := r.findPending(res.ID); ok {
		return false
	}
	key := pendingKey(branchID)
	if !r.cache.Patch(key, func(v any) any {
		list, _ := v.([]models.Reservation)
		for _, existing := range list {
			if existing.ID == res.ID {
				return list
			}
		}
		return append([]models.Reservation{res}, list...)
	}) {
		r.cache.Set(key, []models.Reservation{res})
	}
	r.notify()
	return true
}

// ApplyEvent folds a live stream event into the cache.
func (r *Reconciler) ApplyEvent(ctx context.Context, evt models.Event) {
	switch evt.Event {
	case models.EventReservationCreated, models.EventOrderCreated:
		var res models.Reservation
		if err := json.Unmarshal(evt.Data, &res); err != nil {
			utils.ErrorLogger.Errorf("Decode %s payload: %v", evt.Event, err)
			return
		}
		if res.BranchID == "" {
			res.BranchID = evt.BranchID
		}
		r.MergeCreated(res)
	case models.EventTableUpdate:
		var t models.Table
		if err := json.Unmarshal(evt.Data, &t); err != nil || t.ID == "" {
			utils.ErrorLogger.Errorf("Decode %s payload: %v", evt.Event, err)
			return
		}
		r.applyTable(t)
		r.Invalidate(ctx)
	default:
		utils.InfoLogger.Debugf("Ignoring stream event %q", evt.Event)
	}
}

// AreaDeletionImpact is the number of tables in areaID. The table pages are
// loaded first when the cache holds none that are fresh.
func (r *Reconciler) AreaDeletionImpact(ctx context.Context, areaID string) (int, error) {
	branchID := r.Branch()
	if branchID == "" {
		return 0, ErrNoBranch
	}
	if !r.tablesLoaded(branchID) {
		if err := r.loadTables(ctx, branchID); err != nil {
			return 0, err
		}
	}
	n := 0
	for _, t := range r.Tables() {
		if t.InArea(areaID) {
			n++
		}
	}
	return n, nil
}

func (r *Reconciler) tablesLoaded(branchID string) bool {
	for _, key := range r.cache.Keys(tablesPrefix(branchID)) {
		if r.cache.Fresh(key) {
			return true
		}
	}
	return false
}

// DeleteArea deletes areaID. When tables are affected it refuses unless
// confirmed. The area's tables move to the unassigned bucket; none is
// deleted.
func (r *Reconciler) DeleteArea(ctx context.Context, areaID string, confirmed bool) (int, error) {
	affected, err := r.AreaDeletionImpact(ctx, areaID)
	if err != nil {
		return 0, err
	}
	if affected > 0 && !confirmed {
		return affected, ErrConfirmationRequired
	}
	if err := r.tables.DeleteArea(ctx, areaID); err != nil {
		return affected, err
	}

	branchID := r.Branch()
	for _, key := range r.cache.Keys(tablesPrefix(branchID)) {
		r.cache.Patch(key, func(v any) any {
			p, ok := v.(models.TablePage)
			if !ok {
				return v
			}
			items := make([]models.Table, len(p.Items))
			copy(items, p.Items)
			for i := range items {
				if items[i].InArea(areaID) {
					items[i].AreaID = nil
					items[i].AreaName = ""
				}
			}
			p.Items = items
			return p
		})
	}
	r.cache.Patch(areasKey(branchID), func(v any) any {
		areas, _ := v.([]models.Area)
		out := make([]models.Area, 0, len(areas))
		for _, a := range areas {
			if a.ID != areaID {
				out = append(out, a)
			}
		}
		return out
	})
	r.notify()
	r.Invalidate(ctx)
	utils.InfoLogger.Infof("Area %s deleted, %d tables unassigned", areaID, affected)
	return affected, nil
}

// TableReservations fetches a table's reservations on first use and serves
// them from the cache until invalidated.
func (r *Reconciler) TableReservations(ctx context.Context, tableID string) ([]models.Reservation, error) {
	key := tableResKey(tableID)
	if r.cache.Fresh(key) {
		list, _ := getAs[[]models.Reservation](r.cache, key)
		return append([]models.Reservation{}, list...), nil
	}
	gen := r.cache.Begin(key)
	list, err := r.reservations.ListTableReservations(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Reservation{}
	}
	r.cache.Commit(key, gen, list)
	return append([]models.Reservation{}, list...), nil
}

// AssignReservation seats a reservation at tableID. The reservation must be
// able to move to CONFIRMED and must not overlap a confirmed reservation
// already on the table.
func (r *Reconciler) AssignReservation(ctx context.Context, reservationID, tableID string) (models.Reservation, error) {
	candidate, known := r.findPending(reservationID)
	if known {
		if _, err := candidate.Status.Transition(models.ReservationConfirmed); err != nil {
			return models.Reservation{}, err
		}
		existing, err := r.TableReservations(ctx, tableID)
		if err != nil {
			return models.Reservation{}, err
		}
		if err := CheckOverlap(existing, candidate, tableID, r.window); err != nil {
			return models.Reservation{}, err
		}
	}

	updated, err := r.reservations.AssignTable(ctx, reservationID, tableID)
	if err != nil {
		return models.Reservation{}, err
	}

	r.cache.Patch(pendingKey(r.Branch()), func(v any) any {
		list, _ := v.([]models.Reservation)
		out := make([]models.Reservation, 0, len(list))
		for _, res := range list {
			if res.ID != reservationID {
				out = append(out, res)
			}
		}
		return out
	})
	r.cache.Patch(tableResKey(tableID), func(v any) any {
		list, _ := v.([]models.Reservation)
		return append(append([]models.Reservation{}, list...), updated)
	})
	r.notify()
	r.Invalidate(ctx)
	utils.InfoLogger.Infof("Reservation %s assigned to table %s", reservationID, tableID)
	return updated, nil
}

func (r *Reconciler) findPending(reservationID string) (models.Reservation, bool) {
	for _, res := range r.Pending() {
		if res.ID == reservationID {
			return res, true
		}
	}
	return models.Reservation{}, false
}
