// Пакет rabbit реализует отказоустойчивую публикацию доменных событий
// в AMQP-брокер: ленивое соединение, сериализованный reconnect и
// экспоненциальный backoff с ограниченным числом попыток.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	defaultConnectAttempts = 4
	defaultPublishAttempts = 10
	defaultBackoffBase     = 1 * time.Second

	exchangePrefix = "ex_"
	exchangeKind   = "direct"
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_event_publish_attempts_total",
		Help: "Total number of event publish attempts grouped by result.",
	}, []string{"result"})
	brokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_broker_connected",
		Help: "Whether the AMQP broker connection is currently established.",
	})
)

// channel — минимальный срез API amqp-канала, который нужен паблишеру.
// *amqp.Channel удовлетворяет его напрямую; в тестах подменяется фейком.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type dialFunc func(url string) (connection, error)

type amqpConnection struct {
	conn *amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	return c.conn.Channel()
}

func (c amqpConnection) IsClosed() bool { return c.conn.IsClosed() }
func (c amqpConnection) Close() error   { return c.conn.Close() }

func amqpDial(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn: conn}, nil
}

// Option настраивает Publisher.
type Option func(*Publisher)

// WithConnectAttempts задаёт число попыток установки соединения.
func WithConnectAttempts(attempts int) Option {
	return func(p *Publisher) {
		if attempts > 0 {
			p.connectAttempts = attempts
		}
	}
}

// WithPublishAttempts задаёт число попыток публикации одного события.
func WithPublishAttempts(attempts int) Option {
	return func(p *Publisher) {
		if attempts > 0 {
			p.publishAttempts = attempts
		}
	}
}

// WithBackoffBase задаёт базовую задержку экспоненциального backoff.
func WithBackoffBase(base time.Duration) Option {
	return func(p *Publisher) {
		if base >= 0 {
			p.backoffBase = base
		}
	}
}

// WithLogger задаёт logger паблишера.
func WithLogger(logger *log.Entry) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Publisher публикует доменные события в durable direct exchange,
// имя которого выводится из домена события, с routing key равным kind.
// Соединение и канал устанавливаются лениво, переиспользуются между
// вызовами и пересоздаются, если обнаружены закрытыми. Reconnect
// сериализован мьютексом: конкурентные Publish не открывают дублей.
type Publisher struct {
	url             string
	dial            dialFunc
	connectAttempts int
	publishAttempts int
	backoffBase     time.Duration
	logger          *log.Entry

	mu       sync.Mutex
	conn     connection
	ch       channel
	declared map[string]bool
}

// NewPublisher создаёт паблишер для заданного AMQP URL.
func NewPublisher(url string, options ...Option) *Publisher {
	p := &Publisher{
		url:             url,
		dial:            amqpDial,
		connectAttempts: defaultConnectAttempts,
		publishAttempts: defaultPublishAttempts,
		backoffBase:     defaultBackoffBase,
		logger:          log.WithField("component", "rabbit-publisher"),
		declared:        make(map[string]bool),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Publish сериализует событие и доставляет его с retry-политикой
// at-least-once. Транзиентные ошибки публикации повторяются с
// экспоненциальным backoff; после исчерпания попыток возвращается
// ошибка KindMessageDelivery. Невозможность установить соединение —
// терминальная ошибка KindBrokerConnection без дальнейших повторов.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return domain.WrapUnexpected("failed to serialize event", err)
	}

	exchange := exchangePrefix + event.Domain
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	var lastErr error
	for attempt := 1; attempt <= p.publishAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, attempt-2); err != nil {
				return err
			}
		}

		ch, err := p.ensureChannel(exchange)
		if err != nil {
			if domain.IsKind(err, domain.KindBrokerConnection) {
				publishAttempts.WithLabelValues("connection_failed").Inc()
				return err
			}
			lastErr = err
			publishAttempts.WithLabelValues("retry_error").Inc()
			p.logger.WithError(err).WithFields(log.Fields{
				"kind":    event.Kind,
				"attempt": attempt,
			}).Warn("failed to acquire broker channel, retrying")
			continue
		}

		if err := ch.PublishWithContext(ctx, exchange, event.Kind, true, false, msg); err != nil {
			lastErr = err
			publishAttempts.WithLabelValues("retry_error").Inc()
			p.invalidateChannel()
			p.logger.WithError(err).WithFields(log.Fields{
				"exchange": exchange,
				"kind":     event.Kind,
				"attempt":  attempt,
			}).Warn("publish attempt failed, retrying")
			continue
		}

		publishAttempts.WithLabelValues("sent").Inc()
		p.logger.WithFields(log.Fields{
			"exchange":   exchange,
			"kind":       event.Kind,
			"subject_id": event.SubjectID,
		}).Debug("event published")
		return nil
	}

	publishAttempts.WithLabelValues("failed").Inc()
	return &domain.Error{
		Kind:    domain.KindMessageDelivery,
		Message: fmt.Sprintf("failed to publish %s after %d attempts", event.Kind, p.publishAttempts),
		Err:     lastErr,
	}
}

// ensureChannel возвращает рабочий канал с задекларированным exchange,
// восстанавливая соединение и канал, если они закрыты.
func (p *Publisher) ensureChannel(exchange string) (channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.connectLocked()
		if err != nil {
			return nil, err
		}
		p.conn = conn
		p.ch = nil
		p.declared = make(map[string]bool)
	}

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel: %w", err)
		}
		p.ch = ch
	}

	if !p.declared[exchange] {
		if err := p.ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}

	return p.ch, nil
}

// connectLocked устанавливает соединение с ограниченным числом попыток.
// Вызывается только под мьютексом.
func (p *Publisher) connectLocked() (connection, error) {
	var lastErr error
	for attempt := 1; attempt <= p.connectAttempts; attempt++ {
		conn, err := p.dial(p.url)
		if err == nil {
			brokerConnected.Set(1)
			p.logger.Info("broker connection established")
			return conn, nil
		}
		lastErr = err
		p.logger.WithError(err).WithField("attempt", attempt).Warn("broker connection failed")

		if attempt < p.connectAttempts {
			time.Sleep(p.backoff(attempt - 1))
		}
	}

	brokerConnected.Set(0)
	return nil, &domain.Error{
		Kind:    domain.KindBrokerConnection,
		Message: fmt.Sprintf("failed to connect to broker after %d attempts", p.connectAttempts),
		Err:     lastErr,
	}
}

func (p *Publisher) invalidateChannel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	p.declared = make(map[string]bool)
}

// sleep ждёт backoff-задержку, прерываясь по отмене контекста:
// таймаут вызова обрывает retry-цикл, не ломая уже сохранённое состояние.
func (p *Publisher) sleep(ctx context.Context, exp int) error {
	delay := p.backoff(exp)
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish aborted: %w", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}

func (p *Publisher) backoff(exp int) time.Duration {
	if p.backoffBase <= 0 {
		return 0
	}
	delay := p.backoffBase
	for i := 0; i < exp; i++ {
		delay *= 2
	}
	return delay
}

// Ping сообщает о состоянии соединения с брокером. Соединение
// устанавливается лениво, поэтому его отсутствие до первой публикации
// ошибкой не считается; закрытое соединение — ошибка.
func (p *Publisher) Ping(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && p.conn.IsClosed() {
		return fmt.Errorf("broker connection is closed")
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close broker connection: %w", err)
		}
		p.conn = nil
	}
	brokerConnected.Set(0)
	return nil
}

var _ domain.EventPublisher = (*Publisher)(nil)
