package chatbot

import (
	"context"
	"errors"
	"strings"

	"AgentConsole/internal/backend"
)

var ErrEmptyPath = errors.New("file path required")

func (cb *ChatBot) checkPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return path, nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return "", cb.failLocked(ErrEmptyPath)
}

// ListFiles returns the paths in the user's workspace.
func (cb *ChatBot) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := cb.run(ctx, "file_list", true, func(c *call) (change, error) {
		var err error
		files, err = cb.api.ListFiles(c.ctx, c.token)
		return nil, err
	})
	return files, err
}

// CreateFile writes content to path in the user's workspace.
func (cb *ChatBot) CreateFile(ctx context.Context, path, content string) (*backend.FileResponse, error) {
	path, err := cb.checkPath(path)
	if err != nil {
		return nil, err
	}
	var resp *backend.FileResponse
	err = cb.run(ctx, "file_create", true, func(c *call) (change, error) {
		var err error
		resp, err = cb.api.CreateFile(c.ctx, c.token, path, content)
		return nil, err
	})
	if err == nil {
		cb.logger.Info("file created", "path", path, "bytes", len(content))
	}
	return resp, err
}

// ReadFile returns the content stored at path.
func (cb *ChatBot) ReadFile(ctx context.Context, path string) (*backend.ReadFileResponse, error) {
	path, err := cb.checkPath(path)
	if err != nil {
		return nil, err
	}
	var resp *backend.ReadFileResponse
	err = cb.run(ctx, "file_read", true, func(c *call) (change, error) {
		var err error
		resp, err = cb.api.ReadFile(c.ctx, c.token, path)
		return nil, err
	})
	return resp, err
}

// DeleteFile removes path from the user's workspace.
func (cb *ChatBot) DeleteFile(ctx context.Context, path string) (*backend.FileResponse, error) {
	path, err := cb.checkPath(path)
	if err != nil {
		return nil, err
	}
	var resp *backend.FileResponse
	err = cb.run(ctx, "file_delete", true, func(c *call) (change, error) {
		var err error
		resp, err = cb.api.DeleteFile(c.ctx, c.token, path)
		return nil, err
	})
	if err == nil {
		cb.logger.Info("file deleted", "path", path)
	}
	return resp, err
}
