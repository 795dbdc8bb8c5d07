package group

import (
	"slices"

	"fanfan-translator/pkg/filestore"
)

// Mirror is the optional flat-file copy of group settings. It is also the
// only home of whitelist, admin and auto-translate state.
type Mirror interface {
	Languages(groupID string) ([]string, bool)
	SetLanguages(groupID string, codes []string) error
	DeleteLanguages(groupID string) error
	Engine(groupID string) (string, bool)
	SetEngine(groupID, engine string) error
	AutoTranslate(groupID string) (bool, bool)
	SetAutoTranslate(groupID string, on bool) error
	GroupAdmin(groupID string) string
	IsWhitelisted(userID string) bool
	Purge(groupID string) error
}

type fileMirror struct {
	store *filestore.Store
}

func NewFileMirror(store *filestore.Store) Mirror {
	if store == nil {
		return nil
	}
	return &fileMirror{store: store}
}

func (m *fileMirror) Languages(groupID string) (codes []string, ok bool) {
	m.store.Read(func(d *filestore.Data) {
		var v []string
		v, ok = d.UserPrefs[groupID]
		codes = slices.Clone(v)
	})
	if ok && codes == nil {
		codes = []string{}
	}
	return codes, ok
}

func (m *fileMirror) SetLanguages(groupID string, codes []string) error {
	return m.store.Update(func(d *filestore.Data) error {
		d.UserPrefs[groupID] = normalize(codes)
		return nil
	})
}

func (m *fileMirror) DeleteLanguages(groupID string) error {
	return m.store.Update(func(d *filestore.Data) error {
		delete(d.UserPrefs, groupID)
		return nil
	})
}

func (m *fileMirror) Engine(groupID string) (engine string, ok bool) {
	m.store.Read(func(d *filestore.Data) {
		engine, ok = d.TranslateEnginePref[groupID]
	})
	return engine, ok
}

func (m *fileMirror) SetEngine(groupID, engine string) error {
	return m.store.Update(func(d *filestore.Data) error {
		d.TranslateEnginePref[groupID] = engine
		return nil
	})
}

func (m *fileMirror) AutoTranslate(groupID string) (on bool, ok bool) {
	m.store.Read(func(d *filestore.Data) {
		on, ok = d.AutoTranslate[groupID]
	})
	return on, ok
}

func (m *fileMirror) SetAutoTranslate(groupID string, on bool) error {
	return m.store.Update(func(d *filestore.Data) error {
		d.AutoTranslate[groupID] = on
		return nil
	})
}

func (m *fileMirror) GroupAdmin(groupID string) (admin string) {
	m.store.Read(func(d *filestore.Data) {
		admin = d.GroupAdmin[groupID]
	})
	return admin
}

func (m *fileMirror) IsWhitelisted(userID string) (ok bool) {
	m.store.Read(func(d *filestore.Data) {
		ok = slices.Contains(d.UserWhitelist, userID)
	})
	return ok
}

func (m *fileMirror) Purge(groupID string) error {
	return m.store.Update(func(d *filestore.Data) error {
		delete(d.UserPrefs, groupID)
		delete(d.VoiceTranslation, groupID)
		delete(d.GroupAdmin, groupID)
		delete(d.AutoTranslate, groupID)
		delete(d.TranslateEnginePref, groupID)
		return nil
	})
}
