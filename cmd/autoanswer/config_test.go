package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaults(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeFile(t, "config.yaml", `
database: /tmp/answers.db
log_level: debug
questionnaire_id: vendor-2026
coalesce_window: 1s
write_attempts: 3
job_timeout: 2m
watchdog: "@every 10s"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/answers.db", cfg.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "vendor-2026", cfg.QuestionnaireID)
	assert.Equal(t, time.Second, cfg.CoalesceWindow)
	assert.Equal(t, 3, cfg.WriteAttempts)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.Equal(t, "@every 10s", cfg.Watchdog)
	assert.Equal(t, defaults().AnswerDelay, cfg.AnswerDelay, "unset keys keep defaults")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "questionnaire_id: from-file\njob_timeout: 2m\n")
	t.Setenv("AUTOANSWER_QUESTIONNAIRE_ID", "from-env")
	t.Setenv("AUTOANSWER_JOB_TIMEOUT", "45s")
	t.Setenv("AUTOANSWER_WRITE_ATTEMPTS", "7")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.QuestionnaireID)
	assert.Equal(t, 45*time.Second, cfg.JobTimeout)
	assert.Equal(t, 7, cfg.WriteAttempts)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeFile(t, "bad.yaml", "database: [unclosed"))
	assert.Error(t, err)

	t.Setenv("AUTOANSWER_COALESCE_WINDOW", "soon")
	_, err = loadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOANSWER_COALESCE_WINDOW")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, err := parseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

const questionsYAML = `
questionnaire_id: vendor-2026
questions:
  - id: enc-rest
    question: Is customer data encrypted at rest?
  - id: mfa
    question: Is MFA enforced for administrators?
  - id: dpo
    question: Have you appointed a data protection officer?
answers:
  mfa: Yes, hardware keys for every administrator
rules:
  - keyword: encrypted
    answer: Yes, AES-256
    source:
      type: policy
      name: Encryption Policy
`

func TestLoadQuestions(t *testing.T) {
	qf, err := loadQuestions(writeFile(t, "questions.yaml", questionsYAML))
	require.NoError(t, err)

	assert.Equal(t, "vendor-2026", qf.QuestionnaireID)
	require.Len(t, qf.Questions, 3)
	assert.Equal(t, "enc-rest", qf.Questions[0].RecordID)
	assert.Equal(t, "Is customer data encrypted at rest?", qf.Questions[0].Question)
	require.Len(t, qf.Rules, 1)
	require.NotNil(t, qf.Rules[0].Source)
	assert.Equal(t, "policy", qf.Rules[0].Source.SourceType)
}

func TestLoadQuestions_Empty(t *testing.T) {
	_, err := loadQuestions(writeFile(t, "empty.yaml", "questionnaire_id: x\n"))
	assert.Error(t, err)
}

func TestQuestionFileGenerator(t *testing.T) {
	qf, err := loadQuestions(writeFile(t, "questions.yaml", questionsYAML))
	require.NoError(t, err)
	gen := qf.generator()

	a, sources := gen(core.Question{RecordID: "mfa", Text: "Is MFA enforced for administrators?"})
	require.NotNil(t, a)
	assert.Equal(t, "Yes, hardware keys for every administrator", *a)
	assert.Empty(t, sources)

	a, sources = gen(core.Question{RecordID: "enc-rest", Text: "Is customer data ENCRYPTED at rest?"})
	require.NotNil(t, a)
	assert.Equal(t, "Yes, AES-256", *a)
	require.Len(t, sources, 1)
	assert.Equal(t, "Encryption Policy", sources[0].Name)

	a, _ = gen(core.Question{RecordID: "dpo", Text: "Have you appointed a data protection officer?"})
	assert.Nil(t, a)
}
