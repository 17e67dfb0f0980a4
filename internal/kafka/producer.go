// Package kafka 提供通知事件生产者
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// TopicEvents 业务通知事件主题
const TopicEvents = "codedript-events"

// EventProducer 把业务事件异步投递到 Kafka。
//
// 发布即忘: 投递失败只记日志，财务流程从不等待 broker 确认。
type EventProducer struct {
	producer sarama.AsyncProducer
	clientID string
}

// envelope Kafka 消息体
type envelope struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// NewEventProducer 创建事件生产者
func NewEventProducer(brokers []string, clientID string) (*EventProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Errors = true
	config.Producer.Return.Successes = false

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	p := &EventProducer{producer: producer, clientID: clientID}
	go p.drainErrors()
	return p, nil
}

// drainErrors 消费投递失败通知
func (p *EventProducer) drainErrors() {
	for perr := range p.producer.Errors() {
		logger.Error("event delivery failed",
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err))
	}
}

// Publish 投递一条事件，实现 service.EventPublisher
func (p *EventProducer) Publish(_ context.Context, event string, payload interface{}) {
	data, err := json.Marshal(&envelope{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Error("marshal event failed",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic:     TopicEvents,
		Key:       sarama.StringEncoder(event),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(event)},
			{Key: []byte("producer"), Value: []byte(p.clientID)},
		},
	}
}

// Close 关闭生产者，等待缓冲消息送出
func (p *EventProducer) Close() error {
	return p.producer.Close()
}
