// Package main implements a standalone seed tool that populates the catalog
// database with realistic sample products. It talks directly to PostgreSQL
// and is safe to re-run: product IDs are derived deterministically from the
// product index, so existing rows are skipped.
//
// Run: go run ./cmd/seed
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// deterministicUUID produces a stable UUID-shaped string from a namespace and
// an integer index so that re-runs always produce the same product IDs.
func deterministicUUID(namespace string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", namespace, index)))
	hex := fmt.Sprintf("%x", h[:16])
	return fmt.Sprintf("%s-%s-4%s-%x%s-%s",
		hex[0:8],
		hex[8:12],
		hex[13:16],
		0x8|(h[8]&0x3),
		hex[17:20],
		hex[20:32],
	)
}

type productDef struct {
	name        string
	description string
	image       string
	price       float64
	category    string
	tags        []string
}

var products = []productDef{
	{"Tênis de Corrida Leve", "Tênis esportivo com amortecimento em espuma e cabedal respirável.", "tenis-corrida.jpg", 249.90, "calcados", []string{"esporte", "corrida", "tenis"}},
	{"Tênis Casual Branco", "Tênis de couro sintético para o dia a dia.", "tenis-casual.jpg", 179.90, "calcados", []string{"casual", "tenis"}},
	{"Sandália de Couro", "Sandália artesanal em couro legítimo.", "sandalia-couro.jpg", 129.90, "calcados", []string{"couro", "verao"}},
	{"Camiseta Básica Preta", "Camiseta 100% algodão com corte regular.", "camiseta-preta.jpg", 49.90, "vestuario", []string{"basico", "algodao"}},
	{"Camiseta Estampada", "Camiseta com estampa exclusiva em serigrafia.", "camiseta-estampada.jpg", 59.90, "vestuario", []string{"estampa", "algodao"}},
	{"Calça Jeans Slim", "Calça jeans com elastano e lavagem escura.", "calca-jeans.jpg", 159.90, "vestuario", []string{"jeans", "slim"}},
	{"Jaqueta Corta-Vento", "Jaqueta leve e impermeável com capuz dobrável.", "jaqueta-corta-vento.jpg", 199.90, "vestuario", []string{"inverno", "impermeavel"}},
	{"Moletom com Capuz", "Moletom felpado com bolso canguru.", "moletom-capuz.jpg", 139.90, "vestuario", []string{"inverno", "moletom"}},
	{"Mochila Urbana 25L", "Mochila resistente à água com compartimento para notebook.", "mochila-urbana.jpg", 189.90, "acessorios", []string{"mochila", "notebook"}},
	{"Cinto de Couro Marrom", "Cinto de couro com fivela escovada.", "cinto-couro.jpg", 79.90, "acessorios", []string{"couro"}},
	{"Boné Aba Curva", "Boné ajustável em algodão com bordado frontal.", "bone-aba-curva.jpg", 59.90, "acessorios", []string{"bone", "casual"}},
	{"Óculos de Sol Polarizado", "Óculos com lentes polarizadas e proteção UV400.", "oculos-sol.jpg", 149.90, "acessorios", []string{"verao", "uv400"}},
	{"Relógio Esportivo Digital", "Relógio com cronômetro e resistência à água 5 ATM.", "relogio-esportivo.jpg", 229.90, "acessorios", []string{"esporte", "relogio"}},
	{"Garrafa Térmica 1L", "Garrafa em aço inox que mantém a temperatura por 12 horas.", "garrafa-termica.jpg", 89.90, "casa", []string{"inox", "termica"}},
	{"Caneca de Cerâmica", "Caneca esmaltada 350ml.", "caneca-ceramica.jpg", 34.90, "casa", []string{"cozinha"}},
	{"Luminária de Mesa LED", "Luminária articulada com três níveis de intensidade.", "luminaria-led.jpg", 119.90, "casa", []string{"led", "escritorio"}},
	{"Tapete de Yoga", "Tapete antiderrapante 6mm com alça de transporte.", "tapete-yoga.jpg", 99.90, "esporte", []string{"yoga", "fitness"}},
	{"Corda de Pular Profissional", "Corda com rolamento e cabo de aço revestido.", "corda-pular.jpg", 49.90, "esporte", []string{"fitness", "cardio"}},
	{"Halteres 5kg (Par)", "Par de halteres emborrachados de 5kg.", "halteres-5kg.jpg", 159.90, "esporte", []string{"fitness", "musculacao"}},
	{"Bola de Futebol Oficial", "Bola costurada à mão, tamanho e peso oficiais.", "bola-futebol.jpg", 119.90, "esporte", []string{"futebol"}},
	{"Fone Bluetooth Intra-auricular", "Fone sem fio com estojo de recarga e 24h de bateria.", "fone-bluetooth.jpg", 199.90, "eletronicos", []string{"bluetooth", "audio"}},
	{"Caixa de Som Portátil", "Caixa à prova d'água com 12h de reprodução.", "caixa-som.jpg", 249.90, "eletronicos", []string{"bluetooth", "audio"}},
	{"Carregador Portátil 10000mAh", "Power bank com duas saídas USB e carga rápida.", "carregador-portatil.jpg", 129.90, "eletronicos", []string{"usb", "bateria"}},
	{"Teclado Mecânico Compacto", "Teclado 65% com switches táteis e iluminação branca.", "teclado-mecanico.jpg", 349.90, "eletronicos", []string{"teclado", "escritorio"}},
	{"Mouse Sem Fio Ergonômico", "Mouse vertical com ajuste de DPI.", "mouse-sem-fio.jpg", 119.90, "eletronicos", []string{"mouse", "escritorio"}},
}

func main() {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "pystore"),
		getEnv("POSTGRES_PASSWORD", "pystore_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "py_store"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	inactiveEvery, _ := strconv.Atoi(getEnv("SEED_INACTIVE_EVERY", "10"))

	rng := rand.New(rand.NewSource(42))
	inserted, skipped := 0, 0

	for i, p := range products {
		id := deterministicUUID("catalog-seed", i)

		var exists bool
		if err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists); err != nil {
			log.Fatalf("check product %s: %v", id, err)
		}
		if exists {
			skipped++
			continue
		}

		active := inactiveEvery <= 0 || (i+1)%inactiveEvery != 0
		createdAt := time.Now().UTC().Add(-time.Duration(rng.Intn(90*24)) * time.Hour)

		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, description, image, price, category, tags, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			id, p.name, p.description, p.image, p.price, p.category, p.tags, active, createdAt,
		)
		if err != nil {
			log.Fatalf("insert product %q: %v", p.name, err)
		}
		inserted++
	}

	log.Printf("seed complete: %d inserted, %d already present", inserted, skipped)
}
