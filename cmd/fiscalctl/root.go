package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/bootstrap"
	"github.com/jhoicas/nfe-emissor/pkg/config"
	"github.com/jhoicas/nfe-emissor/pkg/logger"
)

var version = "0.1.0"

// errFailed el resultado ya se imprimió; solo cambia el código de salida.
var errFailed = errors.New("la operación terminó con error")

var (
	envFiles   []string
	companyID  string
	store      string
	issuerFile string

	cfg *config.Config
	log *logger.Logger
	svc *bootstrap.Services
)

var rootCmd = &cobra.Command{
	Use:   "fiscalctl",
	Short: "Emisión de NF-e, NFC-e y NFS-e a través del gateway",
	Long: `fiscalctl ejecuta las operaciones del ciclo de vida de un documento fiscal
(emitir, refrescar, cancelar, carta de corrección) para un emisor registrado.

La configuración se lee de variables de entorno (FISCAL_*, DB_*, JWT_*),
del archivo .env del directorio actual y de los archivos indicados con --env-file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadEnv(); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})
		if cmd.Annotations["offline"] == "true" {
			return nil
		}
		svc, err = bootstrap.New(cmd.Context(), cfg, store, log)
		if err != nil {
			return err
		}
		return registerIssuerFile(cmd.Context())
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if svc != nil {
			svc.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&envFiles, "env-file", nil, "archivos .env adicionales (las variables ya definidas no se sobrescriben)")
	pf.StringVarP(&companyID, "company", "c", os.Getenv("FISCAL_COMPANY_ID"), "ID del emisor (por defecto $FISCAL_COMPANY_ID)")
	pf.StringVar(&store, "store", bootstrap.StorePostgres, "almacén de registros: postgres | memory")
	pf.StringVar(&issuerFile, "issuer", "", "JSON con los datos del emisor; se registra antes de ejecutar (útil con --store memory)")
}

func loadEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("leer .env: %w", err)
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return fmt.Errorf("leer --env-file: %w", err)
		}
	}
	return nil
}

func registerIssuerFile(ctx context.Context) error {
	if issuerFile == "" {
		return nil
	}
	var in dto.RegisterIssuerRequest
	if err := readJSON(issuerFile, &in); err != nil {
		return err
	}
	if in.ID == "" {
		in.ID = companyID
	}
	out, err := svc.Companies.Register(ctx, in)
	if err != nil {
		return fmt.Errorf("registrar emisor: %w", err)
	}
	companyID = out.ID
	log.Debug().Str("company_id", out.ID).Msg("emisor registrado desde archivo")
	return nil
}

func requireCompany() error {
	if companyID == "" {
		return errors.New("indique el emisor con --company o FISCAL_COMPANY_ID")
	}
	return nil
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("abrir %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("leer %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult imprime el resultado y devuelve errFailed si trae error.
func printResult(cmd *cobra.Command, v any, detail *dto.FiscalErrorDetail) error {
	if err := printJSON(cmd.OutOrStdout(), v); err != nil {
		return err
	}
	if detail != nil {
		return errFailed
	}
	return nil
}
