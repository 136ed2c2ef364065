// seed carga la tabla de códigos de circunscripción a partir del XML oficial
// de parámetros (ISO-8859-1) y los upserta directamente en PostgreSQL.
//
// Uso: go run ./cmd/seed [ruta/Parametros.xml]
// Por defecto busca Parametros.xml en el directorio actual. Es re-ejecutable:
// los códigos existentes se actualizan, los nuevos se insertan.
package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/infrastructure/postgres"
	"github.com/tu-usuario/facturador-pro/pkg/config"
)

type parametros struct {
	Tabla struct {
		Valores []valor `xml:"valor"`
	} `xml:"tabla"`
}

type valor struct {
	Cod    string `xml:"cod,attr"`
	Nombre string `xml:"nombre,attr"`
	Otro   struct {
		Codigo string `xml:"codigo,attr"`
		Valor  string `xml:"valor,attr"`
	} `xml:"otro"`
}

func main() {
	xmlPath := "Parametros.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var p parametros
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&p); err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conectar a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewRoutingCodeRepository(pool)

	var count int
	for _, v := range p.Tabla.Valores {
		code := strings.TrimSpace(v.Cod)
		name := strings.TrimSpace(v.Nombre)
		jurisdiction := strings.TrimSpace(v.Otro.Valor)
		if code == "" || name == "" {
			continue
		}
		err := repo.Upsert(ctx, &entity.RoutingCode{
			ID:           uuid.New().String(),
			Code:         code,
			Description:  name,
			Jurisdiction: jurisdiction,
			CreatedAt:    time.Now(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upsert código %s: %v\n", code, err)
			os.Exit(1)
		}
		count++
	}

	fmt.Printf("Cargados %d códigos de circunscripción desde %s\n", count, xmlPath)
}
