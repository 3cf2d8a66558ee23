package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/herbie/internal/domain"
)

const testIdx = `1:0:d=2022010106:TMP:2 m above ground:anl:
2:100:d=2022010106:UGRD:10 m above ground:anl:
3:250:d=2022010106:VGRD:10 m above ground:anl:
`

const testModels = `
model "hrrr" {
  default_product = "sfc"
  source "mirror" {
    url = "{{BASE}}/hrrr.${date}/hrrr.t${format("%02d", hour)}z.wrf${product}f${format("%02d", fxx)}.grib2"
  }
}
`

// writeEnv 启动假镜像，并写出指向它的 herbie.json 与模式目录。
func writeEnv(t *testing.T) (cfgPath, saveDir string) {
	t.Helper()
	data := make([]byte, 400)
	copy(data, "GRIB")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".idx") {
			_, _ = w.Write([]byte(testIdx))
			return
		}
		if !strings.HasSuffix(r.URL.Path, "f00.grib2") && !strings.HasSuffix(r.URL.Path, "f01.grib2") {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "x.grib2", time.Unix(0, 0), bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	saveDir = filepath.Join(root, "data")
	models := filepath.Join(root, "models.hcl")
	require.NoError(t, os.WriteFile(models, []byte(strings.ReplaceAll(testModels, "{{BASE}}", srv.URL)), 0o644))
	cfgPath = filepath.Join(root, "herbie.json")
	cfg := `{"save_dir": "data", "models_file": "models.hcl", "concurrency": 2, "log_level": "error"}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, saveDir
}

func TestCLI_Download_NoTTY_StdoutOnlyBatchReportJSON(t *testing.T) {
	cfg, saveDir := writeEnv(t)

	var stdout, stderr bytes.Buffer
	code := runMain([]string{
		"download", "--config", cfg,
		"--date", "2022-01-01 06:00", "--fxx", "0-2", "--search", ":TMP:",
	}, &stdout, &stderr)
	require.Equal(t, 1, code, "f02 不存在，退出码应为 1；stderr=%s", stderr.String())

	var rr domain.BatchReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rr), "stdout 不是合法的 BatchReport JSON：%q", stdout.String())
	require.Equal(t, saveDir, rr.SaveDir)
	require.Equal(t, 2, rr.Summary.Processed)
	require.Equal(t, 1, rr.Summary.Failed)
	require.Equal(t, int64(200), rr.Summary.Bytes)
	require.NotContains(t, stdout.String(), "配置（生效）")
	require.Contains(t, stderr.String(), "完成：processed=2")
}

func TestCLI_Download_ConfigErrorIsReported(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runMain([]string{
		"download", "--config", filepath.Join(t.TempDir(), "missing.json"), "--date", "2022-01-01",
	}, &stdout, &stderr)
	require.Equal(t, 1, code)

	var rr domain.BatchReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rr))
	require.Len(t, rr.Items, 1)
	require.Equal(t, "config_not_found", rr.Items[0].ErrorCode)
}

func TestCLI_Inventory_JSON(t *testing.T) {
	cfg, _ := writeEnv(t)

	var stdout, stderr bytes.Buffer
	code := runMain([]string{
		"inventory", "--config", cfg, "--date", "2022-01-01 06:00", "--search", "GRD",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out inventoryJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Equal(t, "mirror", out.Source)
	require.Equal(t, domain.ProvenanceRemote, out.Provenance)
	require.Len(t, out.Records, 2)
	require.Equal(t, "UGRD", out.Records[0].Variable)
	require.Nil(t, out.Records[1].End, "最后一条记录应为 open-ended")
}

func TestCLI_Latest_StepsBackFromDate(t *testing.T) {
	cfg, _ := writeEnv(t)

	var stdout, stderr bytes.Buffer
	code := runMain([]string{
		"latest", "--config", cfg, "--date", "2022-01-01 08:00", "--fxx", "1", "--max-back", "3",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out latestJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Equal(t, time.Date(2022, 1, 1, 8, 0, 0, 0, time.UTC), out.Date)
	require.Equal(t, "mirror", out.Source)
}

func TestCLI_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 2, runMain([]string{"nope"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "未知命令")
}

func TestCLI_Models(t *testing.T) {
	cfg, _ := writeEnv(t)
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, runMain([]string{"models", "--config", cfg}, &stdout, &stderr), stderr.String())
	require.Contains(t, stdout.String(), "hrrr")
	require.Contains(t, stdout.String(), "gfs")
}
