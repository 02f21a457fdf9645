// Package tracker keeps the derived descriptor identifiers of a set of
// hidden services current as their rotation periods roll over.
package tracker

import (
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-onion-land/onionidd/iddb"
	"github.com/the-onion-land/onionidd/keyfile"
	"github.com/the-onion-land/onionidd/onion"
)

// Service is one tracked hidden service. Material is nil for services
// registered by address only.
type Service struct {
	Address  string
	Material onion.KeyMaterial
	Cookie   []byte
}

// Rotation reports a freshly computed identifier set for one service.
type Rotation struct {
	Address       string
	TimePeriod    int64
	DescriptorIDs []iddb.DescriptorID
	SecondsValid  int64
	ValidUntil    time.Time
}

type Config struct {
	DB         *iddb.DB
	Replicas   int
	Deviations []int64
	Cookie     []byte
	Logger     Logger
	Clock      func() time.Time
}

type Tracker struct {
	db         *iddb.DB
	replicas   int
	deviations []int64
	cookie     []byte
	log        Logger
	clock      func() time.Time

	servicesMtx sync.Mutex
	services    []*Service

	done chan struct{}

	rotationClients      map[uint32]*RotationClient
	rotationClientMtx    sync.Mutex
	nextRotationClientID uint32
}

func New(config *Config) *Tracker {
	tracker := &Tracker{
		db:              config.DB,
		replicas:        config.Replicas,
		deviations:      config.Deviations,
		cookie:          config.Cookie,
		log:             config.Logger,
		clock:           config.Clock,
		done:            make(chan struct{}),
		rotationClients: make(map[uint32]*RotationClient),
	}

	if tracker.replicas == 0 {
		tracker.replicas = 2
	}
	if tracker.deviations == nil {
		tracker.deviations = []int64{0, 1}
	}
	if tracker.log == nil {
		tracker.log = noopLogger{}
	}
	if tracker.clock == nil {
		tracker.clock = time.Now
	}

	return tracker
}

// AddKeyFile loads a private key container and registers the service it
// belongs to.
func (t *Tracker) AddKeyFile(path string, opts *keyfile.Options) error {
	key, err := keyfile.Load(path, opts)
	if err != nil {
		return err
	}

	return t.AddKey(key.Material())
}

// AddKey registers a service from its public key material.
func (t *Tracker) AddKey(material onion.KeyMaterial) error {
	address, err := onion.EncodeAddress(material)
	if err != nil {
		return err
	}

	t.addService(&Service{Address: address, Material: material})

	t.log.Infof("Tracking v%d service %v.onion", material.AddressVersion(), address)

	return nil
}

// AddAddress registers a service by onion address alone. A trailing .onion
// suffix is accepted.
func (t *Tracker) AddAddress(address string) error {
	address = strings.ToLower(strings.TrimSuffix(address, ".onion"))

	switch len(address) {
	case onion.V2AddressLen:
		if _, err := onion.DecodePermanentID(address); err != nil {
			return err
		}
	case onion.V3AddressLen:
		if _, err := onion.DecodeV3Address(address); err != nil {
			return err
		}
	default:
		return errors.WrapPrefix(onion.ErrInvalidEncoding, "unrecognized address length", 0)
	}

	t.addService(&Service{Address: address})

	t.log.Infof("Tracking service %v.onion by address", address)

	return nil
}

func (t *Tracker) addService(service *Service) {
	t.servicesMtx.Lock()
	defer t.servicesMtx.Unlock()
	t.services = append(t.services, service)
}

// Services returns the persisted records of all tracked services.
func (t *Tracker) Services() ([]*iddb.Service, error) {
	return t.db.ListServices()
}

// Refresh recomputes and persists the identifier set of every tracked
// service and returns how long the results stay valid.
func (t *Tracker) Refresh() (time.Duration, error) {
	t.servicesMtx.Lock()
	services := make([]*Service, len(t.services))
	copy(services, t.services)
	t.servicesMtx.Unlock()

	now := t.clock()
	wait := int64(onion.PeriodSeconds)

	for _, service := range services {
		record, secondsValid, err := t.computeService(service, now)
		if err != nil {
			return 0, errors.Errorf("Could not compute identifiers for %v: %v", service.Address, err)
		}

		if err := t.db.PutService(record); err != nil {
			return 0, errors.Errorf("Could not store record for %v: %v", service.Address, err)
		}

		if secondsValid > 0 {
			t.notifyRotation(&Rotation{
				Address:       record.Address,
				TimePeriod:    record.TimePeriod,
				DescriptorIDs: record.DescriptorIDs,
				SecondsValid:  secondsValid,
				ValidUntil:    record.ValidUntil,
			})

			if secondsValid < wait {
				wait = secondsValid
			}

			t.log.Debugf("Service %v valid for another %ds", record.Address, secondsValid)
		}
	}

	return time.Duration(wait) * time.Second, nil
}

// computeService derives the current record of one service. V3 services
// carry no rotating identifiers, only their address.
func (t *Tracker) computeService(service *Service, now time.Time) (*iddb.Service, int64, error) {
	if len(service.Address) == onion.V3AddressLen {
		return &iddb.Service{Address: service.Address, Version: 3}, 0, nil
	}

	permanentID, err := onion.DecodePermanentID(service.Address)
	if err != nil {
		return nil, 0, err
	}

	timestamp := now.Unix()

	timePeriod, err := onion.TimePeriod(timestamp, permanentID)
	if err != nil {
		return nil, 0, err
	}

	secondsValid, err := onion.SecondsValid(timestamp, permanentID)
	if err != nil {
		return nil, 0, err
	}

	cookie := service.Cookie
	if cookie == nil {
		cookie = t.cookie
	}

	var descriptorIDs []iddb.DescriptorID
	for _, deviation := range t.deviations {
		for replica := 0; replica < t.replicas; replica++ {
			id, err := onion.DescriptorIDForAddress(service.Address, timestamp, replica, deviation, cookie)
			if err != nil {
				return nil, 0, err
			}

			descriptorIDs = append(descriptorIDs, iddb.DescriptorID{
				Replica:   replica,
				Deviation: deviation,
				ID:        id,
			})
		}
	}

	record := &iddb.Service{
		Address:       service.Address,
		Version:       2,
		PermanentID:   hex.EncodeToString(permanentID),
		TimePeriod:    timePeriod,
		DescriptorIDs: descriptorIDs,
		ValidUntil:    now.Add(time.Duration(secondsValid) * time.Second).UTC(),
	}

	return record, secondsValid, nil
}

// Run keeps all records fresh until Shutdown is called, recomputing
// whenever the earliest rotation boundary passes.
func (t *Tracker) Run() error {
	for {
		wait, err := t.Refresh()
		if err != nil {
			return err
		}

		t.log.Infof("Next rotation in %v", wait)

		select {
		case <-time.After(wait):
		case <-t.done:
			// finish loop when program is done
			return nil
		}
	}
}

func (t *Tracker) Shutdown() {
	close(t.done)
}

func (t *Tracker) SubscribeRotations() *RotationClient {
	client := &RotationClient{
		Rotations:  make(chan *Rotation, 4),
		cancelChan: make(chan struct{}),
		tracker:    t,
	}

	t.rotationClientMtx.Lock()
	client.Id = t.nextRotationClientID
	t.nextRotationClientID++
	t.rotationClients[client.Id] = client
	t.rotationClientMtx.Unlock()

	return client
}

func (t *Tracker) unsubscribeRotations(client *RotationClient) error {
	t.rotationClientMtx.Lock()
	defer t.rotationClientMtx.Unlock()

	_, ok := t.rotationClients[client.Id]
	if !ok {
		return errors.New("unknown rotation client")
	}

	close(client.cancelChan)
	delete(t.rotationClients, client.Id)

	return nil
}

func (t *Tracker) notifyRotation(rotation *Rotation) {
	t.rotationClientMtx.Lock()
	defer t.rotationClientMtx.Unlock()

	for _, client := range t.rotationClients {
		select {
		case client.Rotations <- rotation:
		case <-client.cancelChan:
		default:
			t.log.Warnf("Dropping rotation event for slow client %d", client.Id)
		}
	}
}
