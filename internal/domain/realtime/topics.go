package realtime

import (
	"context"

	"go.uber.org/zap"
)

type TopicAuthorizer interface {
	CanJoin(ctx context.Context, payerID, topic string) bool
}

// MatchParticipants answers whether a payer belongs to a match request's
// conversation.
type MatchParticipants interface {
	IsParticipant(ctx context.Context, requestID, payerID string) (bool, error)
}

// TopicPolicy admits payers to "match:<id>" when they take part in that
// match request and to "owner:<id>" only for their own id.
type TopicPolicy struct {
	Matches MatchParticipants
	Log     *zap.Logger
}

func (p TopicPolicy) CanJoin(ctx context.Context, payerID, topic string) bool {
	prefix, id := splitTopic(topic)
	switch prefix {
	case ownerTopicPrefix:
		return id == payerID
	case matchTopicPrefix:
		if p.Matches == nil {
			return false
		}
		ok, err := p.Matches.IsParticipant(ctx, id, payerID)
		if err != nil {
			if p.Log != nil {
				p.Log.Debug("match topic check failed", zap.String("topic", topic), zap.Error(err))
			}
			return false
		}
		return ok
	}
	return false
}
