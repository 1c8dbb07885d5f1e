// Package remote bridges interactor dispatch across processes over a watermill
// transport. A Server consumes requests for the interactors registered on a
// Dispatcher and replies with the result or the encoded error; a Client
// publishes requests and waits for the matching reply. RegisterProxy puts a
// Client behind an ordinary registration, so callers dispatch remote
// interactors exactly like local ones.
package remote

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/interactor/internal/runtime/metadata"
	"github.com/drblury/interactor/internal/runtime/wire"
)

const (
	defaultRequestTopic = "interactor.requests"
	defaultReplyTopic   = "interactor.replies"
	defaultTimeout      = 30 * time.Second
	defaultConcurrency  = 16
)

// Reply is the payload published in answer to a remote request. Exactly one
// of Result and Error is set.
type Reply struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  wire.Payload    `json:"error,omitempty"`
}

// newRequestMessage encodes request and attaches md as message headers.
func newRequestMessage(request any, md metadatapkg.Metadata) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(request)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(ids.NewCorrelationID(), payload)
	metadatapkg.Apply(msg, md)
	middleware.SetCorrelationID(md.CorrelationID(), msg)
	return msg, nil
}

func newReplyMessage(reply Reply, request metadatapkg.Metadata) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(reply)
	if err != nil {
		return nil, err
	}

	status := metadatapkg.StatusOK
	if !reply.OK {
		status = metadatapkg.StatusError
	}
	md := metadatapkg.New(
		metadatapkg.KeyInvocationID, request.InvocationID(),
		metadatapkg.KeyRequestType, request.RequestType(),
		metadatapkg.KeyCorrelationID, request.CorrelationID(),
		metadatapkg.KeyStatus, status,
	)

	msg := message.NewMessage(ids.NewCorrelationID(), payload)
	metadatapkg.Apply(msg, md)
	middleware.SetCorrelationID(md.CorrelationID(), msg)
	return msg, nil
}

func decodeReply(msg *message.Message) (Reply, error) {
	var reply Reply
	if err := jsoncodec.Unmarshal(msg.Payload, &reply); err != nil {
		return Reply{}, err
	}
	if metadatapkg.Of(msg).Failed() {
		reply.OK = false
	}
	return reply, nil
}
