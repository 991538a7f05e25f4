package threads

// Observer receives thread lifecycle events. Implementations must be safe for
// concurrent use and must not block.
//
// CarrierMounted and CarrierUnmounted are called while t owns c, so an
// observer counting them never sees more mounted threads than carriers.
type Observer interface {
	ThreadCreated(t *Thread, total uint64)
	CarrierMounted(c *Carrier, t *Thread)
	CarrierUnmounted(c *Carrier, t *Thread)
	ThreadTerminated(t *Thread, err error)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) ThreadCreated(*Thread, uint64) {}
func (NopObserver) CarrierMounted(*Carrier, *Thread) {}
func (NopObserver) CarrierUnmounted(*Carrier, *Thread) {}
func (NopObserver) ThreadTerminated(*Thread, error) {}
