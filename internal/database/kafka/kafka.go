package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/thedomainai/agentic-stack/internal/config"
)

// Client 持有一条到 Kafka 的管理连接，负责主题创建与健康检查。
// 生产与消费使用的 Writer/Reader 由 broker 适配层按通道各自创建。
type Client struct {
	Conn   *kafka.Conn
	Config *config.KafkaConfig
}

// NewClient 连接到 Kafka 并确保两个任务通道对应的主题存在。
func NewClient(cfg *config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("未配置 Kafka brokers")
	}

	// 1. 建立管理连接
	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka 初始化连接失败: %w", err)
	}

	// 2. 获取已存在的主题
	partitions, err := conn.ReadPartitions()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
	}
	existingTopics := make(map[string]struct{})
	for _, p := range partitions {
		existingTopics[p.Topic] = struct{}{}
	}

	// 3. 创建不存在的任务主题
	var topicsToCreate []kafka.TopicConfig
	for _, topicName := range []string{cfg.DefaultTopic, cfg.HighTopic} {
		if _, exists := existingTopics[topicName]; !exists {
			topicsToCreate = append(topicsToCreate, kafka.TopicConfig{
				Topic:             topicName,
				NumPartitions:     1,
				ReplicationFactor: 1,
			})
		}
	}
	if len(topicsToCreate) > 0 {
		if err := conn.CreateTopics(topicsToCreate...); err != nil {
			conn.Close()
			return nil, fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
		}
	}

	return &Client{Conn: conn, Config: cfg}, nil
}

// Close 安全地关闭管理连接。
func (c *Client) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// HealthCheck 检查 Kafka 连接的健康状况。
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka 客户端未初始化，无法进行健康检查")
	}
	_, err := c.Conn.Controller()
	return err
}

// GetControllerInfo 返回 Kafka 控制器的信息。
func (c *Client) GetControllerInfo() (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("kafka 客户端未初始化")
	}
	controller, err := c.Conn.Controller()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)), nil
}
