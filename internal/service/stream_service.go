package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/RickEth137/ClawStream/internal/archive"
	"github.com/RickEth137/ClawStream/internal/chatlog"
	"github.com/RickEth137/ClawStream/internal/directory"
	"github.com/RickEth137/ClawStream/internal/domain"
	"github.com/RickEth137/ClawStream/internal/engine"
	"github.com/RickEth137/ClawStream/internal/hub"
	"github.com/RickEth137/ClawStream/internal/media"
	"github.com/RickEth137/ClawStream/internal/tts"
	"github.com/RickEth137/ClawStream/pkg/database"
	"github.com/RickEth137/ClawStream/pkg/jwt"
	"github.com/RickEth137/ClawStream/pkg/log"
	"github.com/RickEth137/ClawStream/pkg/storage"
)

// ErrStreamNotFound is returned by GetStream for unknown IDs.
var ErrStreamNotFound = errors.New("service: stream not found")

const clipURLTTL = 6 * time.Hour

type streamService struct {
	registry *engine.Registry
	jwtMgr   *jwt.Manager
	synth    tts.Synthesizer
	finder   media.Finder
	store    storage.Storage
	archive  archive.Repository
	dir      directory.Directory
	chatlog  chatlog.Producer
}

func NewStreamService(
	reg *engine.Registry,
	jwtMgr *jwt.Manager,
	synth tts.Synthesizer,
	finder media.Finder,
	store storage.Storage,
	arch archive.Repository,
	dir directory.Directory,
	cl chatlog.Producer,
) StreamService {
	return &streamService{
		registry: reg,
		jwtMgr:   jwtMgr,
		synth:    synth,
		finder:   finder,
		store:    store,
		archive:  arch,
		dir:      dir,
		chatlog:  cl,
	}
}

func (s *streamService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	claims, err := s.jwtMgr.Validate(token)
	if err != nil {
		c.Send(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "invalid token",
		})
		return err
	}
	if claims.Role != jwt.RoleAgent && claims.Role != jwt.RoleOwner {
		c.Send(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "token does not grant broadcast rights",
		})
		return fmt.Errorf("role %q cannot broadcast", claims.Role)
	}

	c.SetIdentity(claims.Subject, claims.Name, string(claims.Role))

	return c.Send(&domain.AuthResultMessage{
		Type:    domain.MsgTypeAuthResult,
		Success: true,
		AgentID: claims.Subject,
		Name:    claims.Name,
	})
}

func (s *streamService) HandleStart(ctx context.Context, c *hub.Client, displayName string, tags []string) error {
	agentID, name, _ := c.Identity()
	if agentID == "" {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "not authenticated"))
	}
	if displayName == "" {
		displayName = name
	}

	// One stream per agent: the stream ID is the agent ID, so a
	// reconnecting agent always lands on the same session.
	session := s.registry.GetOrCreate(agentID, agentID)
	session.Start(displayName, c.ID(), tags...)
	c.SetStream(agentID, true)

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.dir.SetLive(bg, agentID, agentID, displayName); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldStreamID, agentID).Msg("failed to advertise stream")
		}
	}()

	return c.Send(&domain.StartedMessage{
		Type:   domain.MsgTypeStarted,
		Stream: domain.InfoFromSession(session.Info()),
	})
}

func (s *streamService) HandleUtter(ctx context.Context, c *hub.Client, text string, estimatedDurationMs int64) error {
	streamID, isProducer := c.Stream()
	if !isProducer || streamID == "" {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "no active stream"))
	}
	session, ok := s.registry.Get(streamID)
	if !ok || session.Status() != engine.StatusLive {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeNotFound, "stream is not live"))
	}

	agentID, name, role := c.Identity()
	parsed := engine.Parse(text)
	msg := engine.Message{
		ID:       uuid.New().String(),
		SenderID: agentID,
		Sender:   name,
		Role:     role,
		Text:     parsed.DisplayText,
		SentAt:   time.Now().UTC(),
	}

	// The sequence number is taken synchronously so utterances sent
	// in order resolve in order even when synthesis latencies cross.
	seq := session.NextUtteranceSeq()

	go s.resolveUtterance(session, seq, parsed, msg, estimatedDurationMs)

	return nil
}

// resolveUtterance synthesizes audio, uploads the clip and commits
// the utterance. When synthesis fails the utterance still runs on an
// estimated duration with no audio, so subtitles and avatar state
// keep advancing.
func (s *streamService) resolveUtterance(session *engine.Session, seq uint64, parsed engine.ParsedUtterance, msg engine.Message, estimatedDurationMs int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l := log.L().With().Str(log.FieldStreamID, session.ID).Uint64("seq", seq).Logger()

	audioURL := ""
	duration := time.Duration(estimatedDurationMs) * time.Millisecond
	if duration <= 0 {
		duration = tts.EstimateDuration(parsed.DisplayText)
	}

	if parsed.DisplayText != "" {
		clip, err := s.synth.Synthesize(ctx, parsed.DisplayText)
		switch {
		case err == nil:
			key := fmt.Sprintf("clips/%s/%s.%s", session.ID, msg.ID, clip.Format)
			if err := s.store.Write(ctx, key, bytes.NewReader(clip.Audio), int64(len(clip.Audio)), "audio/"+clip.Format); err != nil {
				l.Error().Err(err).Msg("failed to store clip, degrading to silent utterance")
			} else if url, err := s.store.GetURL(ctx, key, clipURLTTL); err != nil {
				l.Error().Err(err).Msg("failed to resolve clip url, degrading to silent utterance")
			} else {
				audioURL = url
				if clip.Duration > 0 {
					duration = clip.Duration
				}
			}
		case errors.Is(err, tts.ErrUnavailable):
			l.Debug().Msg("no synthesizer configured, running silent utterance")
		default:
			l.Warn().Err(err).Msg("synthesis failed, running silent utterance")
		}
	}

	if !session.BeginUtterance(seq, audioURL, duration, parsed, &msg) {
		return
	}

	if len(parsed.MediaRequests) > 0 {
		s.resolveMedia(ctx, session, seq, parsed.MediaRequests)
	}
}

// resolveMedia looks the requests up in parallel and broadcasts each
// hit. Results for a superseded utterance are dropped inside
// BroadcastMedia.
func (s *streamService) resolveMedia(ctx context.Context, session *engine.Session, seq uint64, reqs []engine.MediaRequest) {
	g, ctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		req := req
		g.Go(func() error {
			item, err := s.finder.Find(ctx, req.Kind, req.Query)
			if err != nil {
				if !errors.Is(err, media.ErrNotFound) {
					l := log.L()
					l.Warn().Err(err).Str("query", req.Query).Msg("media lookup failed")
				}
				return nil
			}
			session.BroadcastMedia(seq, string(item.Kind), req.Query, item.URL)
			return nil
		})
	}
	g.Wait()
}

func (s *streamService) HandleSetPose(ctx context.Context, c *hub.Client, msg *domain.SetPoseMessage) error {
	streamID, isProducer := c.Stream()
	if !isProducer || streamID == "" {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "no active stream"))
	}
	session, ok := s.registry.Get(streamID)
	if !ok || session.Status() != engine.StatusLive {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeNotFound, "stream is not live"))
	}

	session.SetPose(msg.Pose)
	return nil
}

func (s *streamService) HandleEnd(ctx context.Context, c *hub.Client) error {
	streamID, isProducer := c.Stream()
	if !isProducer || streamID == "" {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "no active stream"))
	}
	session, ok := s.registry.Get(streamID)
	if !ok {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeNotFound, "unknown stream"))
	}

	s.endStream(session)
	c.SetStream("", false)
	return nil
}

// endStream shuts a session down and records the boundary effects.
// Safe to call twice; the archive write only happens on the live to
// offline transition.
func (s *streamService) endStream(session *engine.Session) {
	info := session.Info()
	if info.Status != engine.StatusLive {
		return
	}

	session.End()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		l := log.L()
		if err := s.dir.SetOffline(ctx, info.ID); err != nil {
			l.Warn().Err(err).Str(log.FieldStreamID, info.ID).Msg("failed to remove stream from directory")
		}

		rec := &archive.StreamRecord{
			ID:           uuid.New().String(),
			OwnerID:      info.OwnerID,
			Title:        info.DisplayName,
			StartedAt:    info.StartedAt,
			EndedAt:      time.Now().UTC(),
			PeakViewers:  info.Stats.PeakViewers,
			TotalViewers: info.Stats.TotalViewers,
			MessageCount: info.Stats.MessageCount,
			Tags:         database.StringArray(info.Tags),
		}
		if err := s.archive.Save(ctx, rec); err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, info.ID).Msg("failed to archive stream")
		}
	}()
}

func (s *streamService) HandleJoin(ctx context.Context, c *hub.Client, streamID, token, name string) error {
	session, ok := s.registry.Get(streamID)
	if !ok || session.Status() != engine.StatusLive {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeNotFound, "stream is not live"))
	}

	// A valid token personalizes chat; without one the viewer gets a
	// guest identity.
	viewerID := c.ID()
	role := string(jwt.RoleViewer)
	if token != "" {
		if claims, err := s.jwtMgr.Validate(token); err == nil {
			viewerID = claims.Subject
			if name == "" {
				name = claims.Name
			}
			role = string(claims.Role)
		}
	}
	if name == "" {
		name = "guest-" + c.ID()[:8]
	}
	c.SetIdentity(viewerID, name, role)

	// Leave the previous stream first; one subscription per socket.
	if prev, _ := c.Stream(); prev != "" && prev != streamID {
		if prevSession, ok := s.registry.Get(prev); ok {
			prevSession.RemoveViewer(c.ID())
		}
	}

	// The joined ack goes out before the snapshot so the client can
	// treat the next state event as its baseline.
	if err := c.Send(&domain.JoinedMessage{
		Type:   domain.MsgTypeJoined,
		Stream: domain.InfoFromSession(session.Info()),
	}); err != nil {
		return err
	}

	session.AddViewer(c)
	c.SetStream(streamID, false)

	go s.publishViewerCount(session)
	return nil
}

func (s *streamService) HandleLeave(ctx context.Context, c *hub.Client) error {
	streamID, isProducer := c.Stream()
	if streamID == "" || isProducer {
		return nil
	}
	if session, ok := s.registry.Get(streamID); ok {
		session.RemoveViewer(c.ID())
		go s.publishViewerCount(session)
	}
	c.SetStream("", false)
	return c.Send(&domain.LeftMessage{Type: domain.MsgTypeLeft, StreamID: streamID})
}

func (s *streamService) HandleChat(ctx context.Context, c *hub.Client, content string) error {
	streamID, _ := c.Stream()
	if streamID == "" {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeNotJoined, "join a stream first"))
	}
	if content == "" {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "empty message"))
	}
	session, ok := s.registry.Get(streamID)
	if !ok {
		return c.Send(domain.NewErrorMessage(domain.ErrCodeNotFound, "unknown stream"))
	}

	senderID, name, role := c.Identity()
	msg := engine.Message{
		ID:       uuid.New().String(),
		SenderID: senderID,
		Sender:   name,
		Role:     role,
		Text:     content,
		SentAt:   time.Now().UTC(),
	}

	session.Chat(msg)

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.chatlog.Produce(bg, streamID, msg); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to log chat message")
		}
	}()

	return nil
}

func (s *streamService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	streamID, isProducer := c.Stream()
	if streamID == "" {
		return nil
	}
	session, ok := s.registry.Get(streamID)
	if !ok {
		return nil
	}

	if isProducer {
		// Only the connection holding the producer slot ends the
		// stream; a stale socket from before a reconnect does not.
		if session.ProducerConn() == c.ID() {
			s.endStream(session)
		}
		return nil
	}

	session.RemoveViewer(c.ID())
	go s.publishViewerCount(session)
	return nil
}

func (s *streamService) publishViewerCount(session *engine.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.dir.UpdateViewerCount(ctx, session.ID, session.ViewerCount()); err != nil {
		l := log.L()
		l.Debug().Err(err).Str(log.FieldStreamID, session.ID).Msg("failed to update directory viewer count")
	}
}

func (s *streamService) ListStreams(ctx context.Context) []domain.StreamInfo {
	infos := s.registry.ListLive()
	out := make([]domain.StreamInfo, len(infos))
	for i, info := range infos {
		out[i] = domain.InfoFromSession(info)
	}
	return out
}

func (s *streamService) GetStream(ctx context.Context, id string) (*domain.StreamInfo, error) {
	session, ok := s.registry.Get(id)
	if !ok {
		return nil, ErrStreamNotFound
	}
	info := domain.InfoFromSession(session.Info())
	return &info, nil
}

func (s *streamService) Stop() error {
	for _, info := range s.registry.ListLive() {
		if session, ok := s.registry.Get(info.ID); ok {
			s.endStream(session)
		}
	}
	if err := s.chatlog.Close(); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to close chat log producer")
	}
	return s.dir.Close()
}
