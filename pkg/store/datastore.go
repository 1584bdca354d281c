package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/ds9"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

const (
	datastoreKind = "CalculationRecord"
	pingKeyName   = "__ping__"
)

// calculationEntity is the Datastore form of a record. Only the fields used in
// queries are indexed; the record itself is kept as a JSON document.
type calculationEntity struct {
	BuildingID  string
	CreatedAt   time.Time
	Seq         int64  `datastore:",noindex"` // insertion order, breaks timestamp ties
	MeasureName string `datastore:",noindex"`
	Payload     string `datastore:",noindex"`
}

// Datastore stores records in Google Cloud Datastore, one entity per record
// keyed by record id.
type Datastore struct {
	client *ds9.Client
	seq    atomic.Int64
}

var _ efficiency.Store = (*Datastore)(nil)

// OpenDatastore connects to Cloud Datastore. An empty database uses the default database.
func OpenDatastore(ctx context.Context, project, database string) (*Datastore, error) {
	var client *ds9.Client
	err := connect(ctx, "datastore", func() error {
		var err error
		if database == "" {
			client, err = ds9.NewClient(ctx, project)
		} else {
			client, err = ds9.NewClientWithDatabase(ctx, project, database)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Datastore{client: client}, nil
}

// Insert stores rec under its id. An existing entity with the same id is
// never overwritten.
func (d *Datastore) Insert(ctx context.Context, rec efficiency.CalculationRecord) error {
	key := ds9.NameKey(datastoreKind, rec.ID, nil)

	var existing calculationEntity
	err := d.client.Get(ctx, key, &existing)
	switch {
	case err == nil:
		return persistenceError("insert", fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID))
	case !errors.Is(err, ds9.ErrNoSuchEntity):
		return persistenceError("lookup", err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return persistenceError("encode record", err)
	}
	ent := &calculationEntity{
		BuildingID:  rec.BuildingID,
		CreatedAt:   rec.CreatedAt.UTC(),
		Seq:         d.nextSeq(),
		MeasureName: rec.MeasureName,
		Payload:     string(payload),
	}
	if _, err := d.client.Put(ctx, key, ent); err != nil {
		return persistenceError("put", err)
	}
	return nil
}

// ByBuilding returns the building's records, newest first.
func (d *Datastore) ByBuilding(ctx context.Context, buildingID string) ([]efficiency.CalculationRecord, error) {
	q := ds9.NewQuery(datastoreKind).Filter("BuildingID =", buildingID)

	var ents []calculationEntity
	if _, err := d.client.GetAll(ctx, q, &ents); err != nil {
		return nil, persistenceError("query", err)
	}

	recs, err := decodeEntities(ents)
	if err != nil {
		return nil, persistenceError("decode record", err)
	}
	return recs, nil
}

// decodeEntities returns the records newest first; equal timestamps are
// ordered by descending Seq. Sorting here means the query needs no composite index.
func decodeEntities(ents []calculationEntity) ([]efficiency.CalculationRecord, error) {
	type decoded struct {
		rec efficiency.CalculationRecord
		seq int64
	}
	all := make([]decoded, 0, len(ents))
	for i := range ents {
		var rec efficiency.CalculationRecord
		if err := json.Unmarshal([]byte(ents[i].Payload), &rec); err != nil {
			return nil, err
		}
		all = append(all, decoded{rec: rec, seq: ents[i].Seq})
	}
	sort.Slice(all, func(i, j int) bool {
		ti, tj := all[i].rec.CalculationTimestamp, all[j].rec.CalculationTimestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return all[i].seq > all[j].seq
	})

	out := make([]efficiency.CalculationRecord, len(all))
	for i := range all {
		out[i] = all[i].rec
	}
	return out, nil
}

// nextSeq returns a value above every earlier one from this client, following
// the wall clock in nanoseconds.
func (d *Datastore) nextSeq() int64 {
	for {
		last := d.seq.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if d.seq.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Ping performs a lookup of a key that never exists.
func (d *Datastore) Ping(ctx context.Context) error {
	var ent calculationEntity
	err := d.client.Get(ctx, ds9.NameKey(datastoreKind, pingKeyName, nil), &ent)
	if err == nil || errors.Is(err, ds9.ErrNoSuchEntity) {
		return nil
	}
	return persistenceError("ping", err)
}

// Close releases the client.
func (d *Datastore) Close() error {
	return d.client.Close()
}
