// sqs.go — реализация Queue поверх aws-sdk-go-v2 (SQS-совместимый брокер:
// AWS SQS, ElasticMQ). Долгий опрос через WaitTimeSeconds, visibility
// timeout задаётся конфигурацией и обязан покрывать таймаут части.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/bigkaa/goartstore/export-module/internal/config"
)

// longPollSeconds — длительность long poll одного ReceiveMessage.
const longPollSeconds = 10

// SQSQueue — Queue поверх SQS API: отдельные очереди задач и результатов.
type SQSQueue struct {
	client            *sqs.Client
	taskQueueURL      string
	resultQueueURL    string
	visibilitySeconds int32
}

// NewSQSQueue создаёт клиент SQS из конфигурации Export Module.
// S3-credentials переиспользуются: MinIO/ElasticMQ в одном контуре
// обслуживаются одной парой ключей.
func NewSQSQueue(ctx context.Context, cfg *config.Config) (*SQSQueue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации AWS SDK: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQSEndpoint)
		}
	})

	return &SQSQueue{
		client:            client,
		taskQueueURL:      cfg.SQSTaskQueueURL,
		resultQueueURL:    cfg.SQSResultQueueURL,
		visibilitySeconds: int32(cfg.SQSVisibilityTimeout.Seconds()),
	}, nil
}

// CheckReady проверяет доступность очереди задач через GetQueueAttributes.
// Реализует интерфейс handlers.ReadinessChecker.
func (q *SQSQueue) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.taskQueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return "fail", fmt.Sprintf("SQS недоступен: %v", err)
	}
	return "ok", "очередь задач доступна"
}

func (q *SQSQueue) SendTask(ctx context.Context, task PartTask) error {
	return q.send(ctx, q.taskQueueURL, task)
}

func (q *SQSQueue) SendResult(ctx context.Context, result PartResult) error {
	return q.send(ctx, q.resultQueueURL, result)
}

func (q *SQSQueue) send(ctx context.Context, queueURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщения: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("ошибка отправки сообщения в очередь: %w", err)
	}
	return nil
}

func (q *SQSQueue) ReceiveTasks(ctx context.Context, max int32) ([]ReceivedTask, error) {
	out, err := q.receive(ctx, q.taskQueueURL, max)
	if err != nil {
		return nil, err
	}

	tasks := make([]ReceivedTask, 0, len(out))
	for _, msg := range out {
		var task PartTask
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &task); err != nil {
			// Нечитаемое сообщение удаляем сразу: повторная доставка
			// его не исправит.
			_ = q.DeleteTask(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		tasks = append(tasks, ReceivedTask{Task: task, Receipt: aws.ToString(msg.ReceiptHandle)})
	}
	return tasks, nil
}

func (q *SQSQueue) ReceiveResults(ctx context.Context, max int32) ([]ReceivedResult, error) {
	out, err := q.receive(ctx, q.resultQueueURL, max)
	if err != nil {
		return nil, err
	}

	results := make([]ReceivedResult, 0, len(out))
	for _, msg := range out {
		var result PartResult
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &result); err != nil {
			_ = q.DeleteResult(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		results = append(results, ReceivedResult{Result: result, Receipt: aws.ToString(msg.ReceiptHandle)})
	}
	return results, nil
}

func (q *SQSQueue) receive(ctx context.Context, queueURL string, max int32) ([]types.Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     longPollSeconds,
		VisibilityTimeout:   q.visibilitySeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	return out.Messages, nil
}

func (q *SQSQueue) DeleteTask(ctx context.Context, receipt string) error {
	return q.delete(ctx, q.taskQueueURL, receipt)
}

func (q *SQSQueue) DeleteResult(ctx context.Context, receipt string) error {
	return q.delete(ctx, q.resultQueueURL, receipt)
}

func (q *SQSQueue) delete(ctx context.Context, queueURL, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления сообщения из очереди: %w", err)
	}
	return nil
}
