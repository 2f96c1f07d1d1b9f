// Package endpoint implements the reference TCP transport: a libp2p host
// that frames bytes over streams and drives each connection through the
// proxy store's connect/handshake lifecycle.
package endpoint

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	libp2ppeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/events"
	"github.com/brypt-io/brypt-core/internal/peer"
	"github.com/brypt-io/brypt-core/internal/telemetry"
)

// ProtocolID is the endpoint's protocol name, used in bootstrap records and
// endpoint events; the libp2p stream protocol itself is streamProtocol.
const ProtocolID = "tcp"
const streamProtocol = protocol.ID("/brypt/handshake/1.0.0")

const maxFrameBytes = 10 * 1024 * 1024

// ParcelHandler is invoked with a peer's decoded application bytes once its
// cipher package is Ready. It is the endpoint's only coupling to whatever
// layer interprets frames as router.Parcel values -- kept as a callback so
// this package never needs to import internal/router.
type ParcelHandler func(peerID peer.Identifier, payload []byte)

// Endpoint is a single TCP-protocol listener/dialer bound to a proxy store.
type Endpoint struct {
	id       string
	host     host.Host
	store    *peer.Store
	bus      *events.Bus
	logger   telemetry.Logger
	onParcel ParcelHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	localIdentifier peer.Identifier
	streams         map[string]network.Stream // keyed by Identifier.String()

	nextEndpointID atomic.Uint64
}

// New builds an Endpoint listening on listenAddr (a multiaddr string, e.g.
// "/ip4/0.0.0.0/tcp/9000"), bound to store for handshake/registry state and
// bus for lifecycle events.
func New(id string, listenAddr string, store *peer.Store, bus *events.Bus, logger telemetry.Logger, onParcel ParcelHandler) (*Endpoint, error) {
	if logger == nil {
		logger = telemetry.Noop()
	}

	addr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, errs.Newf(errs.InvalidAddress, "endpoint listen address %q: %v", listenAddr, err)
	}

	h, err := libp2p.New(libp2p.ListenAddrs(addr))
	if err != nil {
		bus.Publish(events.BindingFailed, events.EndpointEvent{Protocol: ProtocolID, Address: listenAddr, Reason: err.Error()})
		return nil, errs.Newf(errs.BindingFailed, "listen on %s: %v", listenAddr, err)
	}

	return &Endpoint{
		id:       id,
		host:     h,
		store:    store,
		bus:      bus,
		logger:   logger,
		onParcel: onParcel,
		streams:  make(map[string]network.Stream),
	}, nil
}

// Host returns the endpoint's underlying libp2p host, for callers that
// need to layer additional libp2p protocols over the same connections
// (e.g. internal/discovery's DHT).
func (e *Endpoint) Host() host.Host { return e.host }

// SetLocalIdentifier records this node's own identifier, sent to peers
// during the handshake so they can LinkPeer against it.
func (e *Endpoint) SetLocalIdentifier(id peer.Identifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localIdentifier = id
}

// Start registers the stream handler and begins accepting inbound
// connections. Publishes EndpointStarted.
func (e *Endpoint) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.host.SetStreamHandler(streamProtocol, e.handleInboundStream)
	e.bus.Publish(events.EndpointStarted, events.EndpointEvent{Protocol: ProtocolID, Address: e.host.Addrs()[0].String()})
}

// Stop tears down every open stream and the libp2p host. Publishes
// EndpointStopped.
func (e *Endpoint) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}

	e.mu.Lock()
	streams := e.streams
	e.streams = make(map[string]network.Stream)
	e.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}

	e.wg.Wait()
	err := e.host.Close()
	e.bus.Publish(events.EndpointStopped, events.EndpointEvent{Protocol: ProtocolID})
	if err != nil {
		return errs.Newf(errs.Unspecified, "close endpoint host: %v", err)
	}
	return nil
}

// Connect dials address (a multiaddr with a trailing /p2p/<id> component)
// and drives the initiator side of the handshake over the opened stream.
func (e *Endpoint) Connect(address string) error {
	addr, err := multiaddr.NewMultiaddr(address)
	if err != nil {
		return errs.Newf(errs.InvalidAddress, "connect address %q: %v", address, err)
	}
	info, err := libp2ppeer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return errs.Newf(errs.InvalidAddress, "connect address %q missing /p2p id: %v", address, err)
	}

	stage0, isHeartbeat, err := e.store.DeclareResolvingPeer(address, nil)
	if err != nil {
		return err
	}
	if isHeartbeat {
		return errs.New(errs.AlreadyConnected, "connect: peer is already tracked, use heartbeat re-key instead")
	}

	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()

	if err := e.host.Connect(ctx, *info); err != nil {
		e.store.RescindResolvingPeer(address)
		e.bus.Publish(events.ConnectionFailed, events.EndpointEvent{Protocol: ProtocolID, Address: address, Reason: err.Error()})
		return errs.Newf(errs.ConnectionFailed, "dial %s: %v", address, err)
	}

	stream, err := e.host.NewStream(ctx, info.ID, streamProtocol)
	if err != nil {
		e.store.RescindResolvingPeer(address)
		return errs.Newf(errs.ConnectionFailed, "open stream to %s: %v", address, err)
	}

	e.mu.Lock()
	localID := e.localIdentifier
	e.mu.Unlock()

	if err := writeFrame(stream, localID.Bytes()); err != nil {
		stream.Close()
		e.store.RescindResolvingPeer(address)
		return errs.Newf(errs.ConnectionFailed, "send identifier frame: %v", err)
	}
	if err := writeFrame(stream, stage0); err != nil {
		stream.Close()
		e.store.RescindResolvingPeer(address)
		return errs.Newf(errs.ConnectionFailed, "send handshake stage 0: %v", err)
	}

	e.wg.Add(1)
	go e.driveOutbound(stream, address)
	return nil
}

// driveOutbound runs the initiator's remaining handshake stages and, once
// Ready, the steady-state frame-relay loop.
func (e *Endpoint) driveOutbound(stream network.Stream, address string) {
	defer e.wg.Done()
	defer stream.Close()

	remoteIDFrame, err := readFrame(stream)
	if err != nil {
		e.store.RescindResolvingPeer(address)
		return
	}
	remoteID, err := peer.FromBytes(remoteIDFrame)
	if err != nil {
		e.store.RescindResolvingPeer(address)
		return
	}

	stage1, err := readFrame(stream)
	if err != nil {
		e.store.RescindResolvingPeer(address)
		return
	}

	proxy, err := e.store.LinkPeer(remoteID, address)
	if err != nil {
		return
	}
	stage2, status, err := e.store.AdvanceResolver(proxy, stage1)
	if err != nil {
		return
	}
	if stage2 != nil {
		if err := writeFrame(stream, stage2); err != nil {
			return
		}
	}
	if status != cipher.Ready {
		return
	}

	e.registerAndRelay(stream, remoteID)
}

// handleInboundStream runs the acceptor's side of one connection, from the
// identifier/handshake exchange through steady-state relay.
func (e *Endpoint) handleInboundStream(stream network.Stream) {
	e.wg.Add(1)
	defer e.wg.Done()
	defer stream.Close()

	remoteIDFrame, err := readFrame(stream)
	if err != nil {
		return
	}
	remoteID, err := peer.FromBytes(remoteIDFrame)
	if err != nil {
		return
	}
	stage0, err := readFrame(stream)
	if err != nil {
		return
	}

	remoteAddr := stream.Conn().RemoteMultiaddr().String()
	proxy, err := e.store.LinkPeer(remoteID, remoteAddr)
	if err != nil {
		return
	}

	stage1, status, err := e.store.AdvanceResolver(proxy, stage0)
	if err != nil {
		return
	}
	_ = status

	e.mu.Lock()
	localID := e.localIdentifier
	e.mu.Unlock()

	if err := writeFrame(stream, localID.Bytes()); err != nil {
		return
	}
	if err := writeFrame(stream, stage1); err != nil {
		return
	}

	if proxy.CipherPackage() == nil {
		stage2, err := readFrame(stream)
		if err != nil {
			return
		}
		_, status, err := e.store.AdvanceResolver(proxy, stage2)
		if err != nil || status != cipher.Ready {
			return
		}
	}

	e.registerAndRelay(stream, proxy.Identifier())
}

func (e *Endpoint) registerAndRelay(stream network.Stream, remoteID peer.Identifier) {
	endpointID := fmt.Sprintf("%s-%d", e.id, e.nextEndpointID.Add(1))

	e.mu.Lock()
	e.streams[remoteID.String()] = stream
	e.mu.Unlock()

	reg := peer.EndpointRegistration{
		EndpointID: endpointID,
		Address:    stream.Conn().RemoteMultiaddr(),
		Send:       func(payload []byte) error { return writeFrame(stream, payload) },
		Close:      func() error { return stream.Close() },
	}
	if err := e.store.OnEndpointRegistered(remoteID, reg); err != nil {
		return
	}

	for {
		payload, err := readFrame(stream)
		if err != nil {
			e.mu.Lock()
			delete(e.streams, remoteID.String())
			e.mu.Unlock()
			e.store.OnEndpointWithdrawn(remoteID, endpointID, events.CauseEndpointWithdrawn)
			return
		}
		if e.onParcel != nil {
			e.onParcel(remoteID, payload)
		}
	}
}

func writeFrame(w io.Writer, data []byte) error {
	length := uint32(len(data))
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > maxFrameBytes {
		return nil, errs.Newf(errs.PayloadTooLarge, "frame size %d exceeds %d byte limit", length, maxFrameBytes)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
