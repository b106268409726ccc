package main

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/zeebo/errs"

	"github.com/opdss/dispatcher/contracts/event"
	"github.com/opdss/dispatcher/dispatcher"
)

// ErrInput is returned for lines that cannot be dispatched.
var ErrInput = errs.Class("input")

// Message is the value of the "message" topic.
type Message struct {
	ID   string `yaml:"id"`
	Body string `yaml:"body"`
}

var (
	TopicMessage = dispatcher.NewKey[Message]("message")
	TopicCount   = dispatcher.NewKey[int64]("count")
	TopicRatio   = dispatcher.NewKey[float64]("ratio")
	TopicFlag    = dispatcher.NewKey[bool]("flag")
)

// Events is the pool of topics eventctl knows about.
type Events struct {
	*dispatcher.Pool
}

func NewEvents(opts ...dispatcher.Option) *Events {
	return &Events{
		Pool: dispatcher.MustNewPool([]dispatcher.Binding{
			dispatcher.Bind(TopicMessage, dispatcher.NewDispatcher[Message](opts...)),
			dispatcher.Bind(TopicCount, dispatcher.NewDispatcher[int64](opts...)),
			dispatcher.Bind(TopicRatio, dispatcher.NewDispatcher[float64](opts...)),
			dispatcher.Bind(TopicFlag, dispatcher.NewDispatcher[bool](opts...)),
		}, opts...),
	}
}

// DispatchLine parses "topic value" and dispatches value on topic.
// Blank lines and lines starting with '#' are ignored and return an empty topic.
func (e *Events) DispatchLine(line string) (event.Topic, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil
	}
	name, value, _ := strings.Cut(line, " ")
	topic := event.Topic(name)
	value = strings.TrimSpace(value)

	switch topic {
	case TopicMessage.Topic():
		dispatcher.Dispatch(e.Pool, TopicMessage, Message{ID: uuid.NewString(), Body: value})
	case TopicCount.Topic():
		n, err := cast.ToInt64E(value)
		if err != nil {
			return topic, ErrInput.New("%s: %v", topic, err)
		}
		dispatcher.Dispatch(e.Pool, TopicCount, n)
	case TopicRatio.Topic():
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return topic, ErrInput.New("%s: %v", topic, err)
		}
		dispatcher.Dispatch(e.Pool, TopicRatio, f)
	case TopicFlag.Topic():
		b, err := cast.ToBoolE(value)
		if err != nil {
			return topic, ErrInput.New("%s: %v", topic, err)
		}
		dispatcher.Dispatch(e.Pool, TopicFlag, b)
	default:
		return topic, ErrInput.New("unknown topic %q", topic)
	}
	return topic, nil
}

// TopicInfo describes one topic of the pool.
type TopicInfo struct {
	Topic       string `yaml:"topic"`
	Type        string `yaml:"type"`
	Subscribers int    `yaml:"subscribers"`
}

func (e *Events) Describe() []TopicInfo {
	topics := e.Topics()
	infos := make([]TopicInfo, 0, len(topics))
	for _, topic := range topics {
		infos = append(infos, TopicInfo{
			Topic:       string(topic),
			Type:        e.ValueType(topic),
			Subscribers: e.Subscribers(topic),
		})
	}
	return infos
}
