// internal/service/flashsale/interfaces/dlt_handler_test.go
package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 死信消费者必须订阅死信主题、使用自己的消费组，两者不能写反。
func TestDltConsumerSubscribesDeadLetterTopic(t *testing.T) {
	consumer := NewDltConsumer([]string{"localhost:9092"},
		"flashsale-workers-dlt", "purchase-intent-topic.DLT")
	defer consumer.Stop()

	config := consumer.reader.Config()
	assert.Equal(t, "purchase-intent-topic.DLT", config.Topic)
	assert.Equal(t, "flashsale-workers-dlt", config.GroupID)
}
