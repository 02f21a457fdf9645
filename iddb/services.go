package iddb

import (
	"encoding/json"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

var servicesBucket = []byte("services")

// Service is the memoized identity record of one tracked hidden service.
type Service struct {
	Address       string         `json:"address"`
	Version       int            `json:"version"`
	PermanentID   string         `json:"permanentId,omitempty"`
	TimePeriod    int64          `json:"timePeriod,omitempty"`
	DescriptorIDs []DescriptorID `json:"descriptorIds,omitempty"`
	ValidUntil    time.Time      `json:"validUntil,omitempty"`
}

// DescriptorID is one derived lookup identifier of a service.
type DescriptorID struct {
	Replica   int    `json:"replica"`
	Deviation int64  `json:"deviation"`
	ID        string `json:"id"`
}

func (db *DB) PutService(service *Service) error {
	if service.Address == "" {
		return errors.New("service has no address")
	}

	return db.setJSON(servicesBucket, []byte(service.Address), service)
}

func (db *DB) GetService(address string) (*Service, error) {
	service := &Service{}

	found, err := db.getJSON(servicesBucket, []byte(address), service)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return service, nil
}

func (db *DB) ListServices() ([]*Service, error) {
	var services []*Service

	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(servicesBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			service := &Service{}
			if err := json.Unmarshal(v, service); err != nil {
				return errors.Errorf("Could not unmarshal service %s: %v", k, err)
			}
			services = append(services, service)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return services, nil
}

func (db *DB) DeleteService(address string) error {
	return db.deleteKey(servicesBucket, []byte(address))
}
