/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package respages implements the reserved pages substrate: a space of
// fixed-size pages that replica components persist their state into and that
// is transferred as a whole during state transfer.
package respages

import (
	"sync"

	"github.com/hyperledger-labs/bftclients/common/flogging"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("bftclients.respages")

//go:generate counterfeiter -o mock/store.go -fake-name Store . Store

// Store is a space of fixed-size pages addressed by index.
type Store interface {
	// PageSize is the size in bytes of every page of the store.
	PageSize() uint32
	// ReadPage returns the content of the page at index, or nil if the page
	// has never been written.
	ReadPage(index uint32) ([]byte, error)
	// WritePage replaces the content of the page at index. Data shorter than
	// the page size is zero padded.
	WritePage(index uint32, data []byte) error
}

// Region is a contiguous run of pages of a Store owned by one component.
// Page ids passed to a Region are local to it.
type Region struct {
	owner    string
	store    Store
	offset   uint32
	numPages uint32
}

func (r *Region) Owner() string    { return r.owner }
func (r *Region) Offset() uint32   { return r.offset }
func (r *Region) NumPages() uint32 { return r.numPages }
func (r *Region) PageSize() uint32 { return r.store.PageSize() }

// LoadPage reads a page of the region. The returned buffer always has the
// length of a page; found reports whether the page was ever written.
func (r *Region) LoadPage(pageID uint32) (page []byte, found bool, err error) {
	if err := r.checkBounds(pageID); err != nil {
		return nil, false, err
	}

	data, err := r.store.ReadPage(r.offset + pageID)
	if err != nil {
		return nil, false, errors.WithMessagef(err, "failed reading page %d of %s", pageID, r.owner)
	}

	page = make([]byte, r.store.PageSize())
	if data == nil {
		return page, false, nil
	}
	copy(page, data)
	return page, true, nil
}

// SavePage writes data to a page of the region.
func (r *Region) SavePage(pageID uint32, data []byte) error {
	if err := r.checkBounds(pageID); err != nil {
		return err
	}
	if uint32(len(data)) > r.store.PageSize() {
		return errors.Errorf("page data of %s is %d bytes, exceeds page size %d", r.owner, len(data), r.store.PageSize())
	}

	if err := r.store.WritePage(r.offset+pageID, data); err != nil {
		return errors.WithMessagef(err, "failed writing page %d of %s", pageID, r.owner)
	}
	return nil
}

func (r *Region) checkBounds(pageID uint32) error {
	if pageID >= r.numPages {
		return errors.Errorf("page %d is out of the %d pages reserved by %s", pageID, r.numPages, r.owner)
	}
	return nil
}

// Reserver hands out consecutive regions of a Store. Offsets depend only on
// the order of reservations, so components must reserve in the same order on
// every start for their pages to be found again.
type Reserver struct {
	mutex   sync.Mutex
	store   Store
	next    uint32
	regions map[string]*Region
}

// NewReserver creates a Reserver over store starting at page 0.
func NewReserver(store Store) *Reserver {
	return &Reserver{
		store:   store,
		regions: map[string]*Region{},
	}
}

func (r *Reserver) PageSize() uint32 { return r.store.PageSize() }

// Reserve claims numPages pages for owner.
func (r *Reserver) Reserve(owner string, numPages uint32) (*Region, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if numPages == 0 {
		return nil, errors.Errorf("%s requested zero reserved pages", owner)
	}
	if _, exists := r.regions[owner]; exists {
		return nil, errors.Errorf("reserved pages already allocated to %s", owner)
	}
	if r.next+numPages < r.next {
		return nil, errors.Errorf("reserving %d pages for %s overflows the page space", numPages, owner)
	}

	region := &Region{
		owner:    owner,
		store:    r.store,
		offset:   r.next,
		numPages: numPages,
	}
	r.next += numPages
	r.regions[owner] = region

	logger.Debugf("Reserved pages [%d, %d) for %s", region.offset, r.next, owner)
	return region, nil
}

// TotalPages is the number of pages reserved so far.
func (r *Reserver) TotalPages() uint32 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.next
}
