// Package video receives a remote camera over WebRTC.
//
// The Client speaks the GStreamer webrtcsink signalling protocol over a
// websocket (welcome, list, startSession, peer SDP/ICE), receives an H264
// track, depacketizes the RTP stream and hands it to a persistent ffmpeg
// decoder. The newest decoded JPEG is kept in a latest-value cell.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/watch"
	"go.uber.org/zap"
)

// ErrNoFrame is returned before the first frame has been decoded.
var ErrNoFrame = errors.New("no frame available")

// Config holds remote camera settings.
type Config struct {
	SignallingURL  string        `json:"signalling_url" mapstructure:"signalling_url"`   // e.g. ws://192.168.1.20:8443
	ProducerName   string        `json:"producer_name" mapstructure:"producer_name"`     // Producer meta name; empty picks the first
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"` // Until the first video track
	DecodeFPS      int           `json:"decode_fps" mapstructure:"decode_fps"`           // Cap on decoded frames per second
}

// DefaultConfig returns remote camera defaults.
func DefaultConfig() Config {
	return Config{
		ProducerName:   "focuspet-camera",
		ConnectTimeout: 15 * time.Second,
		DecodeFPS:      10,
	}
}

// Client connects to a webrtcsink producer and decodes its video track.
type Client struct {
	config Config
	logger *zap.SugaredLogger

	ws      *websocket.Conn
	pc      *webrtc.PeerConnection
	wsMutex sync.Mutex

	myPeerID   string
	producerID string

	sessionMu sync.RWMutex
	sessionID string

	frames     *watch.Cell[[]byte]
	decoder    *Decoder
	trackReady chan struct{}

	cancel context.CancelFunc
	closed atomic.Bool
}

// NewClient creates a client. Call Connect to start streaming.
func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = log.L()
	}
	logger = logger.With("component", "video")
	frames := watch.New[[]byte](nil)
	return &Client{
		config:     cfg,
		logger:     logger,
		frames:     frames,
		decoder:    NewDecoder(cfg.DecodeFPS, frames, logger),
		trackReady: make(chan struct{}, 1),
	}
}

// Connect performs signalling and waits for the video track.
func (c *Client) Connect(ctx context.Context) error {
	if c.config.SignallingURL == "" {
		return errors.New("signalling url not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Infow("connecting to signalling server", "url", c.config.SignallingURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	var err error
	c.ws, _, err = dialer.DialContext(ctx, c.config.SignallingURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect failed: %w", err)
	}

	if err := c.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome failed: %w", err)
	}
	c.logger.Debugw("signalling welcome", "peer_id", c.myPeerID)

	if err := c.findProducer(); err != nil {
		return fmt.Errorf("find producer failed: %w", err)
	}
	c.logger.Infow("found producer", "producer_id", c.producerID)

	if err := c.decoder.Start(ctx); err != nil {
		return err
	}

	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection failed: %w", err)
	}

	if err := c.send(signalMessage{Type: "startSession", PeerID: c.producerID}); err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}

	go c.handleSignalling()

	timeout := c.config.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	select {
	case <-c.trackReady:
		c.logger.Info("video connected")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.New("timeout waiting for video")
	}
}

// signalMessage is the webrtcsink signalling envelope.
type signalMessage struct {
	Type      string         `json:"type"`
	PeerID    string         `json:"peerId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Producers []producerInfo `json:"producers,omitempty"`
	SDP       *sdpPayload    `json:"sdp,omitempty"`
	ICE       *icePayload    `json:"ice,omitempty"`
}

type producerInfo struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type icePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

func (c *Client) readMessage(timeout time.Duration) (signalMessage, error) {
	var msg signalMessage
	if timeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(timeout))
		defer c.ws.SetReadDeadline(time.Time{})
	}
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("decode signalling message: %w", err)
	}
	return msg, nil
}

func (c *Client) send(msg signalMessage) error {
	c.wsMutex.Lock()
	defer c.wsMutex.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *Client) waitForWelcome() error {
	msg, err := c.readMessage(10 * time.Second)
	if err != nil {
		return err
	}
	if msg.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", msg.Type)
	}
	c.myPeerID = msg.PeerID
	return nil
}

func (c *Client) findProducer() error {
	if err := c.send(signalMessage{Type: "list"}); err != nil {
		return err
	}

	msg, err := c.readMessage(5 * time.Second)
	if err != nil {
		return err
	}

	id, ok := selectProducer(msg.Producers, c.config.ProducerName)
	if !ok {
		return fmt.Errorf("producer %q not found in %d producers", c.config.ProducerName, len(msg.Producers))
	}
	c.producerID = id
	return nil
}

// selectProducer picks the producer whose meta name matches, or the first
// one when name is empty.
func selectProducer(producers []producerInfo, name string) (string, bool) {
	for _, p := range producers {
		if name == "" || p.Meta["name"] == name {
			return p.ID, true
		}
	}
	return "", false
}

func (c *Client) createPeerConnection() error {
	var err error
	c.pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	// We only receive video
	if _, err = c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Infow("got track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.handleVideoTrack(track)
		}
	})

	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.sendICECandidate(candidate)
		}
	})

	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debugw("connection state", "state", state.String())
	})

	return nil
}

func (c *Client) handleSignalling() {
	for !c.closed.Load() {
		msg, err := c.readMessage(0)
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warnw("signalling error", "error", err)
			}
			return
		}

		switch msg.Type {
		case "sessionStarted":
			c.sessionMu.Lock()
			c.sessionID = msg.SessionID
			c.sessionMu.Unlock()

		case "peer":
			if err := c.handlePeerMessage(msg); err != nil {
				c.logger.Warnw("peer message failed", "error", err)
			}

		case "endSession":
			c.logger.Info("producer ended session")
			return
		}
	}
}

func (c *Client) handlePeerMessage(msg signalMessage) error {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  msg.SDP.SDP,
		}
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}

		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}

		return c.send(signalMessage{
			Type:      "peer",
			SessionID: c.session(),
			SDP:       &sdpPayload{Type: answer.Type.String(), SDP: answer.SDP},
		})
	}

	if msg.ICE != nil {
		return c.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		})
	}

	return nil
}

func (c *Client) session() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.sessionID
}

func (c *Client) sendICECandidate(candidate *webrtc.ICECandidate) {
	session := c.session()
	if session == "" {
		return
	}

	init := candidate.ToJSON()
	err := c.send(signalMessage{
		Type:      "peer",
		SessionID: session,
		ICE: &icePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		},
	})
	if err != nil {
		c.logger.Debugw("send ice candidate failed", "error", err)
	}
}

func (c *Client) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case c.trackReady <- struct{}{}:
	default:
	}

	var depacketizer codecs.H264Packet
	for !c.closed.Load() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		nal, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil {
			c.logger.Debugw("h264 depacketize failed", "error", err)
			continue
		}
		if len(nal) == 0 {
			continue
		}

		if err := c.decoder.Write(nal); err != nil {
			if !c.closed.Load() {
				c.logger.Warnw("decoder write failed", "error", err)
			}
			return
		}
	}
}

// Frame returns the latest decoded JPEG and its version. Versions increase
// by one per decoded frame.
func (c *Client) Frame() ([]byte, uint64, error) {
	data, version := c.frames.Load()
	if data == nil {
		return nil, 0, ErrNoFrame
	}
	return data, version, nil
}

// Subscribe returns a receiver for decoded JPEG frames.
func (c *Client) Subscribe() *watch.Receiver[[]byte] {
	return c.frames.Subscribe()
}

// Close tears down the peer connection, signalling and decoder.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		c.pc.Close()
	}
	if c.ws != nil {
		c.ws.Close()
	}
	c.decoder.Close()
	c.frames.Close()
}
