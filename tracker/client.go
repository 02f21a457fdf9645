package tracker

type RotationClient struct {
	Rotations  chan *Rotation
	Id         uint32
	cancelChan chan struct{}
	tracker    *Tracker
}

func (c *RotationClient) Cancel() error {
	return c.tracker.unsubscribeRotations(c)
}
