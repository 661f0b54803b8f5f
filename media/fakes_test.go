package media

import (
	"encoding/json"
	"fmt"
	"sync"
)

// In-memory SFU fake'leri. Broker testleri worker process'i yerine
// bunları kullanır — IPC yok, davranış deterministik.
//
// produceHook/consumeHook, broker'ın kilidi bırakıp SFU'yu beklediği
// pencerede araya girip yarış senaryoları (disconnect, kanal değişimi)
// kurmak içindir.

type fakeEngine struct {
	mu      sync.Mutex
	routers []*fakeRouter
	closed  bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{}
}

func (e *fakeEngine) NewRouter() (Router, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &fakeRouter{
		id:         fmt.Sprintf("router-%d", len(e.routers)+1),
		caps:       json.RawMessage(`{"codecs":["opus","VP8"]}`),
		canConsume: true,
	}
	e.routers = append(e.routers, r)
	return r, nil
}

func (e *fakeEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *fakeEngine) routerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.routers)
}

// transport, verilen id'li fake transport'u engine'in tüm router'larında arar.
func (e *fakeEngine) transport(id string) *fakeTransport {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.routers {
		if tr := r.transport(id); tr != nil {
			return tr
		}
	}
	return nil
}

type fakeRouter struct {
	mu         sync.Mutex
	id         string
	caps       json.RawMessage
	canConsume bool
	closed     bool
	seq        int
	transports []*fakeTransport
}

func (r *fakeRouter) ID() string { return r.id }

func (r *fakeRouter) RtpCapabilities() json.RawMessage { return r.caps }

func (r *fakeRouter) CanConsume(string, json.RawMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canConsume
}

func (r *fakeRouter) setCanConsume(v bool) {
	r.mu.Lock()
	r.canConsume = v
	r.mu.Unlock()
}

func (r *fakeRouter) CreateTransport(direction Direction) (Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	tr := &fakeTransport{
		id:        fmt.Sprintf("%s-tr-%d", r.id, r.seq),
		direction: direction,
	}
	r.transports = append(r.transports, tr)
	return tr, nil
}

func (r *fakeRouter) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *fakeRouter) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeRouter) transport(id string) *fakeTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tr := range r.transports {
		if tr.id == id {
			return tr
		}
	}
	return nil
}

type fakeTransport struct {
	mu        sync.Mutex
	id        string
	direction Direction
	closed    bool
	dtls      json.RawMessage
	seq       int
	producers []*fakeProducer
	consumers []*fakeConsumer

	produceHook func()
	consumeHook func()
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) Info() TransportInfo {
	return TransportInfo{
		ID:             t.id,
		IceParameters:  json.RawMessage(`{"usernameFragment":"fake"}`),
		IceCandidates:  json.RawMessage(`[]`),
		DtlsParameters: json.RawMessage(`{"role":"auto"}`),
	}
}

func (t *fakeTransport) Connect(dtlsParameters json.RawMessage) error {
	t.mu.Lock()
	t.dtls = dtlsParameters
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) connectedDtls() json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dtls
}

func (t *fakeTransport) Produce(kind Kind, _ json.RawMessage) (Producer, error) {
	if t.produceHook != nil {
		t.produceHook()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	p := &fakeProducer{id: fmt.Sprintf("%s-prod-%d", t.id, t.seq), kind: kind}
	t.producers = append(t.producers, p)
	return p, nil
}

func (t *fakeTransport) Consume(producerID string, _ json.RawMessage) (Consumer, error) {
	if t.consumeHook != nil {
		t.consumeHook()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	c := &fakeConsumer{id: fmt.Sprintf("%s-cons-%d", t.id, t.seq), producerID: producerID}
	t.consumers = append(t.consumers, c)
	return c, nil
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) lastProducer() *fakeProducer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.producers) == 0 {
		return nil
	}
	return t.producers[len(t.producers)-1]
}

func (t *fakeTransport) producerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.producers)
}

func (t *fakeTransport) lastConsumer() *fakeConsumer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.consumers) == 0 {
		return nil
	}
	return t.consumers[len(t.consumers)-1]
}

type fakeProducer struct {
	mu     sync.Mutex
	id     string
	kind   Kind
	closed bool
}

func (p *fakeProducer) ID() string { return p.id }

func (p *fakeProducer) Kind() Kind { return p.kind }

func (p *fakeProducer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakeProducer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeConsumer struct {
	mu         sync.Mutex
	id         string
	producerID string
	resumed    bool
	closed     bool
	spatial    uint8
	temporal   *uint8
}

func (c *fakeConsumer) ID() string { return c.id }

func (c *fakeConsumer) Info() ConsumerInfo {
	return ConsumerInfo{
		ID:            c.id,
		ProducerID:    c.producerID,
		Kind:          KindAudio,
		RtpParameters: json.RawMessage(`{}`),
	}
}

func (c *fakeConsumer) Resume() error {
	c.mu.Lock()
	c.resumed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConsumer) isResumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed
}

func (c *fakeConsumer) SetPreferredLayers(spatial uint8, temporal *uint8) error {
	c.mu.Lock()
	c.spatial = spatial
	c.temporal = temporal
	c.mu.Unlock()
	return nil
}

func (c *fakeConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConsumer) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
