package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"poolmate/internal/models"
	"poolmate/internal/repositories/interfaces"
	"poolmate/internal/utils"
	"poolmate/pkg/cache"
	"poolmate/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func cloneRide(r *models.Ride) *models.Ride {
	c := *r
	c.Members = append([]primitive.ObjectID{}, r.Members...)
	c.Tags = append([]models.RideTag{}, r.Tags...)
	c.Source.Coordinates = append([]float64(nil), r.Source.Coordinates...)
	c.Destination.Coordinates = append([]float64(nil), r.Destination.Coordinates...)
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.CreatedRides = append([]primitive.ObjectID{}, u.CreatedRides...)
	c.JoinedRides = append([]primitive.ObjectID{}, u.JoinedRides...)
	return &c
}

// fakeRideRepo mirrors the conditional semantics of the Mongo repository
// under a single lock.
type fakeRideRepo struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
	seq   int
	err   error
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{rides: map[primitive.ObjectID]*models.Ride{}}
}

func (r *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	ride.ID = primitive.NewObjectID()
	r.seq++
	ride.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	ride.UpdatedAt = ride.CreatedAt
	r.rides[ride.ID] = cloneRide(ride)
	return nil
}

func (r *fakeRideRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneRide(ride), nil
}

func (r *fakeRideRepo) Update(ctx context.Context, id primitive.ObjectID, u *models.RideUpdate) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	if u.MaxMembers != nil && *u.MaxMembers < len(ride.Members) {
		return nil, interfaces.ErrConditionFailed
	}
	if u.Source != nil {
		ride.Source = *u.Source
	}
	if u.Destination != nil {
		ride.Destination = *u.Destination
	}
	if u.RideDate != nil {
		ride.RideDate = *u.RideDate
	}
	if u.Tags != nil {
		ride.Tags = u.Tags
	}
	if u.Description != nil {
		ride.Description = *u.Description
	}
	if u.NoteForJoiners != nil {
		ride.NoteForJoiners = *u.NoteForJoiners
	}
	if u.Cost != nil {
		ride.Cost = *u.Cost
	}
	if u.MaxMembers != nil {
		ride.MaxMembers = *u.MaxMembers
		ride.Status = models.StatusFor(len(ride.Members), ride.MaxMembers)
	}
	ride.UpdatedAt = time.Now()
	return cloneRide(ride), nil
}

func (r *fakeRideRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rides[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(r.rides, id)
	return nil
}

func (r *fakeRideRepo) AddMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[rideID]
	if !ok || ride.Creator == userID || ride.HasMember(userID) || len(ride.Members) >= ride.MaxMembers {
		return nil, interfaces.ErrConditionFailed
	}
	ride.Members = append(ride.Members, userID)
	ride.Status = models.StatusFor(len(ride.Members), ride.MaxMembers)
	return cloneRide(ride), nil
}

func (r *fakeRideRepo) RemoveMember(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.rides[rideID]
	if !ok || !ride.HasMember(userID) {
		return nil, interfaces.ErrConditionFailed
	}
	kept := []primitive.ObjectID{}
	for _, m := range ride.Members {
		if m != userID {
			kept = append(kept, m)
		}
	}
	ride.Members = kept
	ride.Status = models.StatusFor(len(ride.Members), ride.MaxMembers)
	return cloneRide(ride), nil
}

func (r *fakeRideRepo) sorted(keep func(*models.Ride) bool) []*models.Ride {
	out := []*models.Ride{}
	for _, ride := range r.rides {
		if keep(ride) {
			out = append(out, cloneRide(ride))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeRideRepo) List(ctx context.Context, filter models.RideFilter, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}
	all := r.sorted(func(ride *models.Ride) bool {
		if filter.OnlyOpen && ride.Status == models.RideStatusFull {
			return false
		}
		if filter.Tag == "" {
			return true
		}
		for _, t := range ride.Tags {
			if t == filter.Tag {
				return true
			}
		}
		return false
	})
	total := int64(len(all))
	start := params.GetSkip()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.GetLimit()
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeRideRepo) ListByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(ride *models.Ride) bool { return ride.Creator == creatorID }), nil
}

func (r *fakeRideRepo) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(ride *models.Ride) bool { return ride.HasMember(userID) }), nil
}

func (r *fakeRideRepo) ListNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]*models.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(ride *models.Ride) bool {
		return utils.IsWithinRadius(lat, lng, ride.Source.Latitude(), ride.Source.Longitude(), radiusMeters)
	})
	sort.SliceStable(out, func(i, j int) bool {
		di := utils.CalculateDistanceMeters(lat, lng, out[i].Source.Latitude(), out[i].Source.Longitude())
		dj := utils.CalculateDistanceMeters(lat, lng, out[j].Source.Latitude(), out[j].Source.Longitude())
		return di < dj
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
	// joinErr makes AddJoinedRide fail.
	joinErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]*models.User{}}
}

func (r *fakeUserRepo) add(name, email, phone string) *models.User {
	u := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		CreatedRides: []primitive.ObjectID{},
		JoinedRides:  []primitive.ObjectID{},
	}
	r.mu.Lock()
	r.users[u.ID] = u
	r.mu.Unlock()
	return cloneUser(u)
}

func (r *fakeUserRepo) get(id primitive.ObjectID) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return interfaces.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func pullID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := []primitive.ObjectID{}
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (r *fakeUserRepo) modify(id primitive.ObjectID, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *fakeUserRepo) AddCreatedRide(ctx context.Context, userID, rideID primitive.ObjectID) error {
	return r.modify(userID, func(u *models.User) { u.CreatedRides = addID(u.CreatedRides, rideID) })
}

func (r *fakeUserRepo) AddJoinedRide(ctx context.Context, userID, rideID primitive.ObjectID) error {
	if r.joinErr != nil {
		return r.joinErr
	}
	return r.modify(userID, func(u *models.User) { u.JoinedRides = addID(u.JoinedRides, rideID) })
}

func (r *fakeUserRepo) RemoveJoinedRide(ctx context.Context, userID, rideID primitive.ObjectID) error {
	return r.modify(userID, func(u *models.User) { u.JoinedRides = pullID(u.JoinedRides, rideID) })
}

func (r *fakeUserRepo) DetachRide(ctx context.Context, rideID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		u.CreatedRides = pullID(u.CreatedRides, rideID)
		u.JoinedRides = pullID(u.JoinedRides, rideID)
	}
	return nil
}

// fakeGeocoder resolves known place names; anything else fails.
type fakeGeocoder struct {
	mu     sync.Mutex
	places map[string]maps.Location
	calls  int
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{places: map[string]maps.Location{
		"Downtown":    {Latitude: 40.7128, Longitude: -74.0060},
		"Airport":     {Latitude: 40.6413, Longitude: -73.7781},
		"University":  {Latitude: 40.8075, Longitude: -73.9626},
		"Lake Placid": {Latitude: 44.2795, Longitude: -73.9799},
	}}
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) (*maps.GeocodeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	loc, ok := g.places[address]
	if !ok {
		return &maps.GeocodeResponse{}, nil
	}
	return &maps.GeocodeResponse{Results: []maps.GeocodeResult{{Address: address, Coordinates: loc}}}, nil
}

type publishedEvent struct {
	rideID primitive.ObjectID
	kind   string
	data   map[string]interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) SendRideUpdate(rideID primitive.ObjectID, updateType string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{rideID: rideID, kind: updateType, data: data})
}

func (p *fakePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

type fakeNotifier struct {
	removed   chan primitive.ObjectID
	cancelled chan []primitive.ObjectID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		removed:   make(chan primitive.ObjectID, 8),
		cancelled: make(chan []primitive.ObjectID, 8),
	}
}

func (n *fakeNotifier) NotifyMemberRemoved(ctx context.Context, user *models.User, ride *models.Ride) {
	n.removed <- user.ID
}

func (n *fakeNotifier) NotifyRideCancelled(ctx context.Context, users []*models.User, ride *models.Ride) {
	ids := make([]primitive.ObjectID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	n.cancelled <- ids
}

// memoryStore is an in-process CacheStore.
type memoryStore struct {
	mu   sync.Mutex
	data map[string]interface{}
	ttl  map[string]time.Duration
	fail error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]interface{}{}, ttl: map[string]time.Duration{}}
}

func (m *memoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *models.Ride:
		*d = *cloneRide(v.(*models.Ride))
	case *int64:
		*d = v.(int64)
	}
	return nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if r, ok := value.(*models.Ride); ok {
		value = cloneRide(r)
	}
	m.data[key] = value
	m.ttl[key] = expiration
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		delete(m.ttl, k)
	}
	return nil
}

func (m *memoryStore) Increment(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := m.data[key].(int64)
	n++
	m.data[key] = n
	return n, nil
}

func (m *memoryStore) SetExpire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = expiration
	return nil
}

func (m *memoryStore) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttl[key], nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
