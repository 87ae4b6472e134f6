package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/contacerta/reconciler/internal/domain"
	"github.com/contacerta/reconciler/internal/fiscal"
	"github.com/contacerta/reconciler/internal/matching"
	"github.com/contacerta/reconciler/internal/repository"
)

// Upload is one file received from the caller with its declared format.
type Upload struct {
	Filename string
	Format   string // xlsx, csv or pdf
	Data     []byte
}

// Service turns uploaded statement files into canonical records, runs the
// requested engine and persists the outcome. Engines stay pure: all I/O lives
// here.
type Service struct {
	runRepo   *repository.RunRepo
	engine    *matching.Engine
	uploadDir string
	log       *logrus.Entry
}

func NewService(runRepo *repository.RunRepo, engine *matching.Engine, uploadDir string, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		runRepo:   runRepo,
		engine:    engine,
		uploadDir: uploadDir,
		log:       log.WithField("component", "ingestion"),
	}
}

// readRows dispatches an upload to the right reader.
func readRows(u Upload) ([][]string, error) {
	switch u.Format {
	case "xlsx", "xls":
		return ReadXLSX(u.Data)
	case "csv":
		return ReadCSV(u.Data)
	case "pdf":
		return ReadBAIStatement(u.Data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", u.Format)
	}
}

// inputHash fingerprints the pair of uploads for idempotency: re-submitting
// the same two files returns the stored run instead of a new one.
func inputHash(a, b Upload) string {
	h := sha256.New()
	h.Write(a.Data)
	h.Write([]byte{0})
	h.Write(b.Data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// MovementOutcome bundles the stored run with the engine result. Reused holds
// whether an identical earlier submission was returned instead of recomputing.
type MovementOutcome struct {
	Run    *repository.Run  `json:"run"`
	Result *matching.Result `json:"result"`
	Reused bool             `json:"reused"`
}

// ReconcileMovements ingests a bank statement and a ledger export, matches
// them and persists the run attributed to the launching operator.
func (s *Service) ReconcileMovements(ctx context.Context, extrato, contab Upload, launchedBy string) (*MovementOutcome, error) {
	hash := inputHash(extrato, contab)
	if prev, err := s.runRepo.GetByHash(hash); err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	} else if prev != nil && prev.Kind == repository.RunMovement {
		var res matching.Result
		if err := json.Unmarshal([]byte(prev.ResultJSON), &res); err != nil {
			return nil, fmt.Errorf("decode stored run %s: %w", prev.ID, err)
		}
		s.log.WithField("run", prev.ID).Info("duplicate submission, returning stored run")
		return &MovementOutcome{Run: prev, Result: &res, Reused: true}, nil
	}

	extRows, err := readRows(extrato)
	if err != nil {
		return nil, fmt.Errorf("read extrato: %w", err)
	}
	contRows, err := readRows(contab)
	if err != nil {
		return nil, fmt.Errorf("read contabilidade: %w", err)
	}

	source, err := BuildMovements(extRows, domain.OriginBank)
	if err != nil {
		return nil, fmt.Errorf("extrato: %w", err)
	}
	target, err := BuildMovements(contRows, domain.OriginLedger)
	if err != nil {
		return nil, fmt.Errorf("contabilidade: %w", err)
	}

	result, err := s.engine.Reconcile(ctx, source, target)
	if err != nil {
		return nil, err
	}

	run, err := s.persistRun(repository.RunMovement, hash, extrato, contab, result.Summary, result, launchedBy)
	if err != nil {
		return nil, err
	}
	return &MovementOutcome{Run: run, Result: result}, nil
}

// ReconcileMovementsRequest runs a movement reconciliation over canonical
// movements submitted directly, skipping file ingestion. The request's config
// overrides apply to this run only, so the idempotency hash covers the whole
// request: the same movements under different tolerances are different runs.
func (s *Service) ReconcileMovementsRequest(ctx context.Context, req matching.Request, launchedBy string) (*MovementOutcome, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(reqJSON))

	if prev, err := s.runRepo.GetByHash(hash); err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	} else if prev != nil && prev.Kind == repository.RunMovement {
		var res matching.Result
		if err := json.Unmarshal([]byte(prev.ResultJSON), &res); err != nil {
			return nil, fmt.Errorf("decode stored run %s: %w", prev.ID, err)
		}
		s.log.WithField("run", prev.ID).Info("duplicate submission, returning stored run")
		return &MovementOutcome{Run: prev, Result: &res, Reused: true}, nil
	}

	result, err := s.engine.ReconcileWith(ctx, req)
	if err != nil {
		return nil, err
	}

	srcJSON, err := json.Marshal(req.Source)
	if err != nil {
		return nil, fmt.Errorf("marshal source: %w", err)
	}
	tgtJSON, err := json.Marshal(req.Target)
	if err != nil {
		return nil, fmt.Errorf("marshal target: %w", err)
	}
	run, err := s.persistRun(repository.RunMovement, hash,
		Upload{Filename: "source.json", Format: "json", Data: srcJSON},
		Upload{Filename: "target.json", Format: "json", Data: tgtJSON},
		result.Summary, result, launchedBy)
	if err != nil {
		return nil, err
	}
	return &MovementOutcome{Run: run, Result: result}, nil
}

// FiscalOutcome is the fiscal counterpart of MovementOutcome.
type FiscalOutcome struct {
	Run    *repository.Run `json:"run"`
	Result *fiscal.Result  `json:"result"`
	Reused bool            `json:"reused"`
}

// ReconcileFiscal ingests the authority map and the supplier map and runs the
// key-based partition.
func (s *Service) ReconcileFiscal(ctx context.Context, authority, ledger Upload, launchedBy string) (*FiscalOutcome, error) {
	hash := inputHash(authority, ledger)
	if prev, err := s.runRepo.GetByHash(hash); err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	} else if prev != nil && prev.Kind == repository.RunFiscal {
		var res fiscal.Result
		if err := json.Unmarshal([]byte(prev.ResultJSON), &res); err != nil {
			return nil, fmt.Errorf("decode stored run %s: %w", prev.ID, err)
		}
		s.log.WithField("run", prev.ID).Info("duplicate submission, returning stored run")
		return &FiscalOutcome{Run: prev, Result: &res, Reused: true}, nil
	}

	authRows, err := readRows(authority)
	if err != nil {
		return nil, fmt.Errorf("read authority map: %w", err)
	}
	ledgRows, err := readRows(ledger)
	if err != nil {
		return nil, fmt.Errorf("read supplier map: %w", err)
	}

	authRecords, err := BuildFiscalRecords(authRows, domain.FiscalAuthority)
	if err != nil {
		return nil, err
	}
	ledgRecords, err := BuildFiscalRecords(ledgRows, domain.FiscalLedger)
	if err != nil {
		return nil, err
	}

	result, err := fiscal.Reconcile(ctx, authRecords, ledgRecords)
	if err != nil {
		return nil, err
	}

	run, err := s.persistRun(repository.RunFiscal, hash, authority, ledger, result.Summary, result, launchedBy)
	if err != nil {
		return nil, err
	}
	return &FiscalOutcome{Run: run, Result: result}, nil
}

// persistRun stores the two uploads on disk and the serialized result in the
// runs table.
func (s *Service) persistRun(kind repository.RunKind, hash string, src, tgt Upload, summary, result any, createdBy string) (*repository.Run, error) {
	id := uuid.NewString()

	srcPath, err := s.storeFile(id, "source", src)
	if err != nil {
		return nil, err
	}
	tgtPath, err := s.storeFile(id, "target", tgt)
	if err != nil {
		return nil, err
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	run := &repository.Run{
		ID:          id,
		Kind:        kind,
		Status:      repository.RunCompleted,
		FileHash:    hash,
		SourceFile:  srcPath,
		TargetFile:  tgtPath,
		SummaryJSON: string(summaryJSON),
		ResultJSON:  string(resultJSON),
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.runRepo.Insert(run); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"run": id, "kind": kind}).Info("run persisted")
	return run, nil
}

func (s *Service) storeFile(runID, side string, u Upload) (string, error) {
	dir := filepath.Join(s.uploadDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := side
	if u.Filename != "" {
		name = side + "_" + filepath.Base(u.Filename)
	} else if u.Format != "" {
		name = side + "." + u.Format
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, u.Data, 0o644); err != nil {
		return "", fmt.Errorf("store %s file: %w", side, err)
	}
	return path, nil
}
