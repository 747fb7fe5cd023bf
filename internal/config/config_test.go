package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) write(content string) string {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ConfigTestSuite) TestLoad_Defaults() {
	cfg, err := Load(s.write("log_level: debug\n"))
	s.Require().NoError(err)

	s.Equal("debug", cfg.LogLevel)
	s.Equal("file", cfg.Storage.Driver)
	s.Equal("data", cfg.Storage.Dir)
	s.Equal("file", cfg.Source.Kind)
	s.Equal("google_tasks_backup.json", cfg.Source.BackupPath)
	s.Equal("https://api.openai.com", cfg.OpenAI.BaseURL)
	s.Equal("/v1/chat/completions", cfg.OpenAI.Endpoint)
	s.Equal("24h", cfg.OpenAI.CompletionWindow)
	s.Equal("gpt-4o", cfg.Generation.Model)
	s.Equal(0, cfg.Generation.Count)
	s.Equal(100, cfg.Generation.CorpusCap)
	s.Equal("linkedin", cfg.Generation.Template)
	s.Contains(cfg.Generation.Templates, "twitter")
	s.Equal(30*time.Minute, cfg.Schedule.Interval)
	s.Equal(":8080", cfg.Server.Addr)
	s.False(cfg.RabbitMQ.Enabled)
}

func (s *ConfigTestSuite) TestLoad_Overrides() {
	path := s.write(`
storage:
  driver: postgres
database:
  host: db
  user: drafter
  password: secret
  dbname: drafter
generation:
  count: 5
  template: blog
  templates:
    blog:
      platform: blog
      prompt: "Write about <element>"
schedule:
  interval: 10m
`)
	cfg, err := Load(path)
	s.Require().NoError(err)

	s.Equal("postgres", cfg.Storage.Driver)
	s.Equal("host=db port=5432 user=drafter password=secret dbname=drafter sslmode=disable", cfg.Database.DSN())
	s.Equal(5, cfg.Generation.Count)
	s.Equal("blog", cfg.Generation.Template)
	s.Len(cfg.Generation.Templates, 1)
	s.Equal(10*time.Minute, cfg.Schedule.Interval)
}

func (s *ConfigTestSuite) TestLoad_ExpandsEnv() {
	s.T().Setenv("DRAFTER_TEST_KEY", "sk-test")
	cfg, err := Load(s.write("openai:\n  api_key: ${DRAFTER_TEST_KEY}\n"))
	s.Require().NoError(err)
	s.Equal("sk-test", cfg.OpenAI.APIKey)
}

func (s *ConfigTestSuite) TestLoad_MissingFile() {
	_, err := Load(filepath.Join(s.dir, "missing.yaml"))
	s.ErrorContains(err, "read config file")
}

func (s *ConfigTestSuite) TestLoad_BadYAML() {
	_, err := Load(s.write("storage: [\n"))
	s.ErrorContains(err, "parse config")
}

func (s *ConfigTestSuite) TestLoad_InvalidValues() {
	cases := map[string]string{
		"log level":    "log_level: loud\n",
		"driver":       "storage:\n  driver: sqlite\n",
		"source kind":  "source:\n  kind: ftp\n",
		"count":        "generation:\n  count: -1\n",
		"unknown tmpl": "generation:\n  template: myspace\n",
		"empty prompt": "generation:\n  templates:\n    linkedin:\n      platform: linkedin\n",
		"interval":     "schedule:\n  interval: -1m\n",
		"run timeout":  "schedule:\n  run_timeout: -30s\n",
	}
	for name, content := range cases {
		s.Run(name, func() {
			_, err := Load(s.write(content))
			s.ErrorContains(err, "validate config")
		})
	}
}
