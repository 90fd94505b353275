package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Language представляет поддерживаемый язык
type Language string

const (
	LangRussian Language = "ru"
	LangEnglish Language = "en"
)

// Languages - все поддерживаемые языки в порядке меню
var Languages = []Language{LangRussian, LangEnglish}

//go:embed locales/*.json
var embedded embed.FS

// Translator хранит каталоги переводов. Безопасен для конкурентного использования.
type Translator struct {
	mu       sync.RWMutex
	data     map[Language]map[string]string
	fallback Language
	log      *zap.Logger
}

// New создаёт переводчик со встроенными каталогами
func New(fallback Language, log *zap.Logger) (*Translator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Translator{
		data:     make(map[Language]map[string]string),
		fallback: fallback,
		log:      log,
	}
	for _, lang := range Languages {
		raw, err := embedded.ReadFile("locales/" + string(lang) + ".json")
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения встроенной локализации %s: %w", lang, err)
		}
		catalog, err := parseCatalog(raw)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга встроенной локализации %s: %w", lang, err)
		}
		t.data[lang] = catalog
	}
	return t, nil
}

func parseCatalog(raw []byte) (map[string]string, error) {
	var catalog map[string]string
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadDir накладывает переводы из каталога поверх встроенных.
// Отсутствующий файл языка пропускается.
func (t *Translator) LoadDir(dir string) error {
	for _, lang := range Languages {
		path := filepath.Join(dir, string(lang)+".json")
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("ошибка чтения файла локализации %s: %w", path, err)
		}
		overlay, err := parseCatalog(raw)
		if err != nil {
			return fmt.Errorf("ошибка парсинга файла локализации %s: %w", path, err)
		}

		t.mu.Lock()
		merged := make(map[string]string, len(t.data[lang])+len(overlay))
		for k, v := range t.data[lang] {
			merged[k] = v
		}
		for k, v := range overlay {
			merged[k] = v
		}
		t.data[lang] = merged
		t.mu.Unlock()

		t.log.Info("Загружена локализация", zap.String("lang", string(lang)), zap.Int("keys", len(overlay)))
	}
	return nil
}

// Watch перечитывает каталог при изменении файлов, пока не отменён ctx
func (t *Translator) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ошибка создания наблюдателя: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("ошибка наблюдения за %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var lastEvent time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				// редакторы пишут файл несколькими событиями
				if time.Since(lastEvent) < 500*time.Millisecond {
					continue
				}
				lastEvent = time.Now()
				if err := t.LoadDir(dir); err != nil {
					t.log.Warn("Ошибка перезагрузки локализации", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.log.Warn("Ошибка наблюдателя локализации", zap.Error(err))
			}
		}
	}()
	return nil
}

// T возвращает перевод для указанного ключа и языка
func (t *Translator) T(key string, lang Language) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if text, ok := t.data[lang][key]; ok {
		return text
	}

	// Fallback на язык по умолчанию
	if lang != t.fallback {
		if text, ok := t.data[t.fallback][key]; ok {
			return text
		}
	}

	t.log.Debug("Перевод не найден", zap.String("key", key), zap.String("lang", string(lang)))
	return key
}

// Tf возвращает форматированный перевод
func (t *Translator) Tf(key string, lang Language, args ...interface{}) string {
	template := t.T(key, lang)
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

// Has проверяет наличие ключа в каталоге языка
func (t *Translator) Has(key string, lang Language) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.data[lang][key]
	return ok
}

// Fallback возвращает язык по умолчанию
func (t *Translator) Fallback() Language {
	return t.fallback
}

// IsValidLanguage проверяет, является ли язык поддерживаемым
func IsValidLanguage(lang string) bool {
	switch Language(strings.ToLower(lang)) {
	case LangRussian, LangEnglish:
		return true
	default:
		return false
	}
}

// ParseLanguage преобразует строку в Language, неизвестный язык заменяется на fallback
func ParseLanguage(lang string, fallback Language) Language {
	if IsValidLanguage(lang) {
		return Language(strings.ToLower(lang))
	}
	return fallback
}

// GetLanguageName возвращает название языка на этом языке
func GetLanguageName(lang Language) string {
	switch lang {
	case LangEnglish:
		return "English"
	default:
		return "Русский"
	}
}

// GetLanguageFlag возвращает флаг для языка
func GetLanguageFlag(lang Language) string {
	switch lang {
	case LangEnglish:
		return "🇬🇧"
	default:
		return "🇷🇺"
	}
}
