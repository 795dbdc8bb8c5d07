package tenant

import (
	"context"
	"slices"

	"fanfan-translator/pkg/filestore"
)

// fileStore keeps tenants in the data file's "tenants" section. It backs the
// service when no database is configured and otherwise receives best-effort
// copies of subscription and attach writes.
type fileStore struct {
	store *filestore.Store
}

func NewFileStore(store *filestore.Store) Store {
	if store == nil {
		return nil
	}
	return &fileStore{store: store}
}

func (m *fileStore) Upsert(_ context.Context, sub *Subscription) error {
	return m.store.Update(func(d *filestore.Data) error {
		t := d.Tenants[sub.OwnerID]
		t.Token = sub.Token
		t.ExpiresAt = filestore.FormatTime(sub.ExpiresAt)
		if t.CreatedAt == "" {
			t.CreatedAt = filestore.FormatTime(sub.CreatedAt)
		}
		if t.Groups == nil {
			t.Groups = []string{}
		}
		d.Tenants[sub.OwnerID] = t
		return nil
	})
}

func (m *fileStore) Get(_ context.Context, ownerID string) (*Subscription, error) {
	var (
		t  filestore.Tenant
		ok bool
	)
	m.store.Read(func(d *filestore.Data) {
		t, ok = d.Tenants[ownerID]
		t.Groups = slices.Clone(t.Groups)
	})
	if !ok {
		return nil, ErrNotFound
	}

	sub := &Subscription{
		OwnerID:        ownerID,
		Token:          t.Token,
		TranslateCount: t.Stats.TranslateCount,
		CharCount:      t.Stats.CharCount,
		Groups:         t.Groups,
	}
	// Unparseable timestamps leave the zero time, which reads as expired.
	sub.ExpiresAt, _ = filestore.ParseTime(t.ExpiresAt)
	sub.CreatedAt, _ = filestore.ParseTime(t.CreatedAt)
	return sub, nil
}

func (m *fileStore) Attach(_ context.Context, ownerID, groupID string) (attached bool, err error) {
	err = m.store.Update(func(d *filestore.Data) error {
		for owner, t := range d.Tenants {
			if slices.Contains(t.Groups, groupID) {
				if owner != ownerID {
					return ErrGroupOwned
				}
				return nil
			}
		}
		t, ok := d.Tenants[ownerID]
		if !ok {
			return ErrNotFound
		}
		t.Groups = append(t.Groups, groupID)
		d.Tenants[ownerID] = t
		attached = true
		return nil
	})
	return attached, err
}

func (m *fileStore) Detach(_ context.Context, groupID string) error {
	return m.store.Update(func(d *filestore.Data) error {
		for owner, t := range d.Tenants {
			if i := slices.Index(t.Groups, groupID); i >= 0 {
				t.Groups = slices.Delete(t.Groups, i, i+1)
				d.Tenants[owner] = t
			}
		}
		return nil
	})
}

func (m *fileStore) OwnerOf(_ context.Context, groupID string) (owner string, ok bool, err error) {
	m.store.Read(func(d *filestore.Data) {
		for id, t := range d.Tenants {
			if slices.Contains(t.Groups, groupID) {
				owner, ok = id, true
				return
			}
		}
	})
	return owner, ok, nil
}

func (m *fileStore) Accrue(_ context.Context, ownerID string, translates, chars int64) error {
	return m.store.Update(func(d *filestore.Data) error {
		t, ok := d.Tenants[ownerID]
		if !ok {
			return ErrNotFound
		}
		t.Stats.TranslateCount += translates
		t.Stats.CharCount += chars
		d.Tenants[ownerID] = t
		return nil
	})
}

func (m *fileStore) Groups(_ context.Context, ownerID string) (groups []string, err error) {
	m.store.Read(func(d *filestore.Data) {
		groups = slices.Clone(d.Tenants[ownerID].Groups)
	})
	return groups, nil
}

