package serv

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const devConfig = `
system_id: local.ehrbase.org
db_schema: ehr
cache_size: 50
templates:
  - id: report
    uuid: 8c4d2a0e-5b55-4f8b-9d2a-9c8f6a2b7e11
`

func TestReadInConfigFS(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(devConfig), 0o644))

	conf, err := ReadInConfigFS("/config/dev", fs)
	require.NoError(t, err)

	assert.Equal(t, "local.ehrbase.org", conf.SystemID)
	assert.Equal(t, "postgres", conf.DBType)
	assert.Equal(t, 50, conf.CacheSize)
	require.NotNil(t, conf.LateralFilterWorkaround)
	assert.True(t, *conf.LateralFilterWorkaround)
	require.Len(t, conf.Templates, 1)
	assert.Equal(t, "report", conf.Templates[0].ID)
	assert.Equal(t, "simple", conf.LogFormat)
	assert.Equal(t, "/config", conf.ConfigPath)
	assert.False(t, conf.DB.Configured())
}

func TestReadInConfigInherits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(devConfig), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/config/prod.yml", []byte(`
inherits: dev
lateral_filter_workaround: false
log_format: json
database:
  host: db
  dbname: ehrbase
`), 0o644))

	conf, err := ReadInConfigFS("/config/prod", fs)
	require.NoError(t, err)

	assert.Equal(t, "local.ehrbase.org", conf.SystemID)
	assert.False(t, *conf.LateralFilterWorkaround)
	assert.Equal(t, "json", conf.LogFormat)
	assert.True(t, conf.DB.Configured())
	assert.Equal(t, uint16(5432), conf.DB.Port)
	assert.Equal(t, "template_store", conf.DB.TemplateTable)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("AQLC_SYSTEM_ID", "env.ehrbase.org")
	t.Setenv("AQLC_DATABASE_DBNAME", "ehrbase")

	conf, err := NewConfig("db_schema: data", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "env.ehrbase.org", conf.SystemID)
	assert.Equal(t, "data", conf.DBSchema)
	assert.Equal(t, "ehrbase", conf.DB.DBName)
}

func TestGetConfigName(t *testing.T) {
	for env, want := range map[string]string{"": "dev", "production": "prod", "stage": "stage", "qa": "qa"} {
		t.Setenv("GO_ENV", env)
		assert.Equal(t, want, GetConfigName())
	}
}

func TestTemplatesQuery(t *testing.T) {
	conf, err := NewConfig("", "yaml")
	require.NoError(t, err)

	q, args, err := templatesQuery(conf)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "template_id" FROM "ehr"."template_store" ORDER BY "template_id" ASC`, q)
	assert.Empty(t, args)
}

func TestNewServiceLoadsTemplates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	report := uuid.MustParse("2f1c0a1e-5d0b-4b5e-9d7e-6a1f2b3c4d5e")
	mock.ExpectQuery(`SELECT "id", "template_id" FROM "ehr"."template_store"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id"}).
			AddRow(report.String(), "report"))
	mock.ExpectClose()

	conf, err := NewConfig("system_id: local.ehrbase.org", "yaml")
	require.NoError(t, err)

	s, err := NewService(context.Background(), conf, zaptest.NewLogger(t).Sugar(), OptionSetDB(db))
	require.NoError(t, err)

	res, err := s.Compile(context.Background(), `SELECT c FROM COMPOSITION c
		WHERE c/archetype_details/template_id/value = 'report'`, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Params, report.String())

	require.NoError(t, s.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTemplatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	mock.ExpectQuery(`template_store`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id"}).AddRow("not-a-uuid", "report"))

	conf, err := NewConfig("", "yaml")
	require.NoError(t, err)

	_, err = LoadTemplates(context.Background(), db, conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading templates")
}
