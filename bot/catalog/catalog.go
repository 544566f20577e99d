// Package catalog holds the static service categories and question topics
// offered by the intake bot. The data is process-wide and immutable.
package catalog

import "fmt"

// ErrUnknownKey is returned when a lookup references a key the catalog does not contain.
type ErrUnknownKey struct {
	Key string
}

func (e *ErrUnknownKey) Error() string {
	return fmt.Sprintf("catalog: unknown key %q", e.Key)
}

// Code identifies the error class for structured handler logs.
func (e *ErrUnknownKey) Code() string { return "UNKNOWN_CATALOG_KEY" }

// Category is a service category a user can order.
// Label is the inline button text; Key is what gets persisted with the order.
type Category struct {
	Key   string
	Label string
}

// Topic is a predefined question a user can ask.
// Label is the inline button text; Summary is the admin-facing wording.
type Topic struct {
	Key     string
	Label   string
	Summary string
}

var categories = []Category{
	{Key: "business", Label: "💼 Бот для бизнеса"},
	{Key: "sales", Label: "🛒 Бот для продаж"},
	{Key: "leads", Label: "📦 Бот для заявок"},
	{Key: "ai", Label: "🧠 AI-бот"},
	{Key: "support", Label: "🛠 Поддержка и доработка"},
}

var topics = []Topic{
	{Key: "q_price", Label: "💰 Стоимость проекта", Summary: "интересует стоимость"},
	{Key: "q_deadline", Label: "⏰ Сроки реализации", Summary: "интересует сроки реализации"},
	{Key: "q_features", Label: "🛠 Возможности бота", Summary: "интересуют возможности бота"},
	{Key: "q_support", Label: "🛡 Поддержка после запуска", Summary: "интересует поддержка после запуска"},
	{Key: "q_crm", Label: "🔗 Интеграции с CRM", Summary: "интересует интеграция с CRM"},
	{Key: "q_ai", Label: "🤖 AI-функционал", Summary: "интересует AI-функционал"},
	{Key: "q_notify", Label: "🔔 Уведомления", Summary: "интересует настройка уведомлений"},
	{Key: "q_security", Label: "🔒 Безопасность", Summary: "интересует безопасность данных"},
	{Key: "q_mobile", Label: "📱 Мобильность", Summary: "интересует мобильная версия"},
	{Key: "q_custom", Label: "⚙️ Индивидуально", Summary: "интересует индивидуальная разработка"},
}

// Categories returns all service categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Topics returns all question topics in display order.
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// CategoryByKey resolves a category by its key.
func CategoryByKey(key string) (Category, error) {
	for _, c := range categories {
		if c.Key == key {
			return c, nil
		}
	}
	return Category{}, &ErrUnknownKey{Key: key}
}

// TopicByKey resolves a topic by its key.
func TopicByKey(key string) (Topic, error) {
	for _, t := range topics {
		if t.Key == key {
			return t, nil
		}
	}
	return Topic{}, &ErrUnknownKey{Key: key}
}

// TopicSummary returns the admin-facing wording for a topic,
// falling back to the raw key when unknown.
func TopicSummary(key string) string {
	if t, err := TopicByKey(key); err == nil {
		return t.Summary
	}
	return key
}

// IsCategoryKey reports whether key names a known service category.
func IsCategoryKey(key string) bool {
	_, err := CategoryByKey(key)
	return err == nil
}

// IsTopicKey reports whether key names a known question topic.
func IsTopicKey(key string) bool {
	_, err := TopicByKey(key)
	return err == nil
}
