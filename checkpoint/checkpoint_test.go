package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func testDB(tst *testing.T) *bolt.DB {
	tst.Helper()
	db, err := bolt.Open(filepath.Join(tst.TempDir(), "chk.db"), 0644, nil)
	if err != nil {
		tst.Fatal(err)
	}
	tst.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoad(tst *testing.T) {
	db := testDB(tst)
	s := NewSaver(db, []byte("run1"), time.Second)
	rec := &Record{
		Parameters: map[string]float64{"kappa": 2.5, "br0": 0.1},
		Likelihood: -1234.5,
		Iter:       42,
	}
	if err := s.Save(rec); err != nil {
		tst.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		tst.Fatal(err)
	}
	if got == nil {
		tst.Fatal("no record found")
	}
	if got.Likelihood != rec.Likelihood || got.Iter != rec.Iter {
		tst.Errorf("got %+v, want %+v", got, rec)
	}
	if got.Parameters["kappa"] != 2.5 {
		tst.Errorf("kappa = %g", got.Parameters["kappa"])
	}
	if got.Final {
		tst.Error("record must not be final")
	}
}

func TestLoadMissing(tst *testing.T) {
	db := testDB(tst)
	s := NewSaver(db, []byte("nosuch"), time.Second)
	got, err := s.Load()
	if err != nil {
		tst.Fatal(err)
	}
	if got != nil {
		tst.Errorf("expected no record, got %+v", got)
	}
}

func TestDisabled(tst *testing.T) {
	var s *Saver
	if s.Due() {
		tst.Error("nil saver must never be due")
	}
	if err := s.Save(&Record{}); err != nil {
		tst.Error("nil saver must ignore saves")
	}
}

func TestDue(tst *testing.T) {
	db := testDB(tst)
	s := NewSaver(db, []byte("run1"), time.Hour)
	if !s.Due() {
		tst.Error("a fresh saver is due immediately")
	}
	if err := s.Save(&Record{}); err != nil {
		tst.Fatal(err)
	}
	if s.Due() {
		tst.Error("saver is due right after a save")
	}
}
