// Package pipeline runs the asynchronous message conversions: transcription
// for voice-origin messages and speech synthesis for text-origin messages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devspinn/voiceapp/internal/metrics"
	"github.com/devspinn/voiceapp/internal/models"
	"github.com/devspinn/voiceapp/internal/speech"
	"github.com/devspinn/voiceapp/internal/storage"
	"github.com/devspinn/voiceapp/internal/store"
	"github.com/devspinn/voiceapp/internal/ws"
)

// ConversionError wraps a failure of the remote speech capability.
type ConversionError struct{ Err error }

func (e *ConversionError) Error() string { return "conversion failed: " + e.Err.Error() }
func (e *ConversionError) Unwrap() error { return e.Err }

// PersistError wraps a rejected record-store update.
type PersistError struct{ Err error }

func (e *PersistError) Error() string { return "persist failed: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// Notifier fans an event out to a set of users. Satisfied by *ws.Registry.
type Notifier interface {
	NotifyMany(userIDs []uuid.UUID, event ws.Event)
}

// job is one conversion run for a single message.
type job struct {
	variant        string // "transcription" or "synthesis"
	messageID      string
	conversationID uuid.UUID
	audioFilename  string // transcription input
	text           string // synthesis input
}

// Pipeline owns the worker pool executing conversion jobs. Jobs are
// fire-and-forget: the submitting request never waits, and every job ends in
// a terminal persisted status regardless of what fails inside it.
type Pipeline struct {
	store     store.DataStore
	storage   storage.AudioStore
	converter speech.Converter
	notifier  Notifier
	logger    zerolog.Logger
	timeout   time.Duration

	jobs chan job
	wg   sync.WaitGroup

	// mu orders submissions against Close so intake never touches a
	// closed channel.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// Config sizes the worker pool.
type Config struct {
	Workers     int
	QueueDepth  int
	CallTimeout time.Duration // per remote conversion call
}

// New creates the pipeline and starts its workers.
func New(st store.DataStore, audio storage.AudioStore, conv speech.Converter, notifier Notifier, logger zerolog.Logger, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}

	p := &Pipeline{
		store:     st,
		storage:   audio,
		converter: conv,
		notifier:  notifier,
		logger:    logger,
		timeout:   cfg.CallTimeout,
		jobs:      make(chan job, cfg.QueueDepth),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// EnqueueTranscription schedules the voice→text conversion for a message.
// Never blocks the caller.
func (p *Pipeline) EnqueueTranscription(messageID string, conversationID uuid.UUID, audioFilename string) {
	p.submit(job{
		variant:        "transcription",
		messageID:      messageID,
		conversationID: conversationID,
		audioFilename:  audioFilename,
	})
}

// EnqueueSynthesis schedules the text→voice conversion for a message.
// Never blocks the caller.
func (p *Pipeline) EnqueueSynthesis(messageID string, conversationID uuid.UUID, text string) {
	p.submit(job{
		variant:        "synthesis",
		messageID:      messageID,
		conversationID: conversationID,
		text:           text,
	})
}

// submit hands the job to the pool; if the queue is saturated it spawns a
// goroutine instead so the synchronous creation path is never held open.
// The read lock is held across the channel send so a concurrent Close can
// never close the channel under a submitter.
func (p *Pipeline) submit(j job) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn().Str("message_id", j.messageID).Msg("pipeline closed, job dropped")
		return
	}
	select {
	case p.jobs <- j:
	default:
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(j)
		}()
	}
}

// Close stops intake and waits for in-flight jobs to reach a terminal state.
func (p *Pipeline) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

// run drives one job through the state machine:
// pending → processing → completed | failed. All errors terminate here.
func (p *Pipeline) run(j job) {
	start := time.Now()
	err := p.convert(j)

	outcome := "completed"
	if err != nil {
		outcome = "failed"
		p.logger.Error().
			Err(err).
			Str("variant", j.variant).
			Str("message_id", j.messageID).
			Msg("pipeline job failed")
		p.markFailed(j)
	}
	metrics.PipelineJobs.WithLabelValues(j.variant, outcome).Inc()
	metrics.PipelineDuration.WithLabelValues(j.variant).Observe(time.Since(start).Seconds())

	// Participants learn the outcome either way: a failed conversion is
	// still a state change clients must re-fetch.
	p.notifyParticipants(j)
}

// convert performs the conversion and persists the terminal completed state.
func (p *Pipeline) convert(j job) error {
	ctx := context.Background()

	if err := p.store.SetMessageStatus(ctx, j.messageID, models.StatusProcessing); err != nil {
		return &PersistError{err}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	switch j.variant {
	case "transcription":
		text, err := p.converter.Transcribe(callCtx, p.storage.AudioPath(j.audioFilename))
		if err != nil {
			return &ConversionError{err}
		}
		if err := p.store.SetMessageText(ctx, j.messageID, text, models.StatusCompleted); err != nil {
			return &PersistError{err}
		}
	case "synthesis":
		audio, err := p.converter.Synthesize(callCtx, j.text)
		if err != nil {
			return &ConversionError{err}
		}
		// Derived from the message ID, which is unique, so no collisions.
		filename := fmt.Sprintf("%s-tts.mp3", j.messageID)
		audioURL, err := p.storage.SaveAudio(filename, audio)
		if err != nil {
			return &ConversionError{err}
		}
		if err := p.store.SetMessageAudio(ctx, j.messageID, audioURL, models.StatusCompleted); err != nil {
			return &PersistError{err}
		}
	default:
		return errors.New("unknown pipeline variant: " + j.variant)
	}
	return nil
}

// markFailed persists the failed status; its own failure is only logged,
// there is nobody upstream to propagate to.
func (p *Pipeline) markFailed(j job) {
	if err := p.store.SetMessageStatus(context.Background(), j.messageID, models.StatusFailed); err != nil {
		p.logger.Error().
			Err(err).
			Str("message_id", j.messageID).
			Msg("failed to persist failed status")
	}
}

func (p *Pipeline) notifyParticipants(j job) {
	participants, err := p.store.GetParticipantIDs(context.Background(), j.conversationID)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("conversation_id", j.conversationID.String()).
			Msg("participant lookup failed, update event not sent")
		return
	}
	p.notifier.NotifyMany(participants, ws.MessageUpdated(j.conversationID, j.messageID))
}
