package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/okrsync/internal/hermes"
	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
	"github.com/MikeSquared-Agency/okrsync/internal/transform"
)

func mergeRequest() transform.Request {
	return transform.Request{
		Outputs:     []string{objectstore.UpdatedInitiatives},
		Instruction: mergeInstruction,
		Inputs: []transform.Input{
			{Name: objectstore.InitiativesData, Mode: transform.CombineEvents},
			{Name: objectstore.ChatUpdates, Mode: transform.CombineEvents},
		},
	}
}

// Converse sends one utterance to the update agent and returns its reply.
// When the reply carries a structured update it is merged into the snapshot;
// merge failures are logged and do not affect the returned reply.
func (p *Pipeline) Converse(ctx context.Context, utterance string) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		return "", ErrEmptyUtterance
	}

	p.op.Lock()
	defer p.op.Unlock()

	p.mu.RLock()
	agentID := p.agentID
	identities := initiative.Identities(p.snapshot)
	p.mu.RUnlock()
	if agentID == "" {
		return "", ErrChatDisabled
	}

	p.appendTurn(SpeakerUser, utterance)

	message := fmt.Sprintf(chatContext, strings.Join(identities, ", "), utterance)
	reply, err := p.turn(ctx, agentID, message)
	if err != nil {
		p.logger.Error("chat turn failed", "error", err)
		return "", err
	}
	p.appendTurn(SpeakerAssistant, reply)

	merged := false
	if p.detector.Detect(reply) {
		if err := p.merge(ctx, reply); err != nil {
			p.logger.Warn("chat update not merged, snapshot unchanged", "kind", KindOf(err), "error", err)
		} else {
			merged = true
		}
	}

	p.publish(hermes.SubjectChatReply, hermes.ChatReply{
		Utterance: utterance,
		Reply:     reply,
		Merged:    merged,
	})
	return reply, nil
}

// merge folds a reply into initiatives_data and reloads the snapshot from it.
// If the merge result does not decode, initiatives_data is put back so the
// store and the snapshot agree.
func (p *Pipeline) merge(ctx context.Context, reply string) error {
	p.logger.Info("merging chat update", "reply_len", len(reply))

	if err := p.put(ctx, stageMerge, objectstore.ChatUpdates, reply); err != nil {
		return err
	}
	if err := p.apply(ctx, stageMerge, mergeRequest()); err != nil {
		return err
	}

	updated, err := p.get(ctx, stageMerge, objectstore.UpdatedInitiatives)
	if err != nil {
		return err
	}

	previous, err := p.get(ctx, stageMerge, objectstore.InitiativesData)
	hadPrevious := err == nil
	if err != nil && KindOf(err) != DefectNotFound {
		return err
	}

	if err := p.put(ctx, stageMerge, objectstore.InitiativesData, updated); err != nil {
		return err
	}

	items, err := p.load(ctx, stageMerge, objectstore.InitiativesData)
	if err != nil {
		p.restore(ctx, previous, hadPrevious)
		return err
	}

	p.replace(ctx, items, stageMerge)
	return nil
}

// restore runs detached from the caller's cancellation: once initiatives_data
// has been overwritten it must be put back even if the caller went away.
func (p *Pipeline) restore(ctx context.Context, previous string, hadPrevious bool) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if hadPrevious {
		err = p.put(ctx, stageMerge, objectstore.InitiativesData, previous)
	} else {
		err = p.remove(ctx, stageMerge, objectstore.InitiativesData)
	}
	if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		p.logger.Error("failed to restore initiatives_data after failed merge", "error", err)
	}
}
