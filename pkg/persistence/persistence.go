package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = fmt.Errorf("persistence data not exists")

// JSONFileStore 固定路径的 JSON 文件存储。
// 写入先落到同目录的临时文件再 rename，读者不会看到半写的文件。
type JSONFileStore struct {
	path   string
	indent bool
}

// NewJSONFileStore 创建 JSON 文件存储
func NewJSONFileStore(path string, indent bool) *JSONFileStore {
	return &JSONFileStore{path: path, indent: indent}
}

// Path 文件路径
func (s *JSONFileStore) Path() string {
	return s.path
}

// Save 保存数据
func (s *JSONFileStore) Save(data interface{}) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败 %s: %w", dir, err)
	}

	var (
		b   []byte
		err error
	)
	if s.indent {
		b, err = json.MarshalIndent(data, "", "  ")
	} else {
		b, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("替换文件失败: %w", err)
	}
	return nil
}

// Load 加载数据
func (s *JSONFileStore) Load(data interface{}) error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}
