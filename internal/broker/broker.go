package broker

import "sync"

// Broker простой in-process брокер: один буферизованный канал на топик.
// Все подписчики топика читают из одного канала (конкурирующие потребители).
type Broker[T any] struct {
	mu          sync.Mutex
	topics      map[string]chan T
	maxSizeChan uint
}

func New[T any](maxCountMsgInTopic uint) *Broker[T] {
	return &Broker[T]{
		topics:      make(map[string]chan T),
		maxSizeChan: maxCountMsgInTopic,
	}
}

func (b *Broker[T]) topic(name string) chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan T, b.maxSizeChan)
		b.topics[name] = ch
	}
	return ch
}

// Publish блокируется, пока в топике нет места
func (b *Broker[T]) Publish(topic string, msg T) {
	b.topic(topic) <- msg
}

// TryPublish не блокируется: при заполненном топике сообщение отбрасывается
func (b *Broker[T]) TryPublish(topic string, msg T) bool {
	select {
	case b.topic(topic) <- msg:
		return true
	default:
		return false
	}
}

func (b *Broker[T]) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.topics[topic]; ok {
		close(v)
	}

	delete(b.topics, topic)
}

func (b *Broker[T]) Subscribe(topic string) <-chan T {
	return b.topic(topic)
}
