package syncer

// Publisher receives every successfully published snapshot so the
// serving layer can push it to live subscribers. Implementations must
// not block; synchronizers call Publish outside their state lock.
type Publisher interface {
	Publish(kind string, payload any)
}
