// Package visor dibuja el mapa de memoria del núcleo: el pool de marcos físicos
// y el espacio virtual de un proceso, a la manera del memshow de WeensyOS.
package visor

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

const (
	paginasPorFila = 64
	lado           = 10 // Lado de una celda en píxeles
	margen         = 20
	alturaTitulo   = 18
)

var (
	colorFondo      = color.RGBA{0x10, 0x10, 0x18, 0xFF}
	colorLibre      = color.RGBA{0x30, 0x30, 0x38, 0xFF}
	colorKernel     = color.RGBA{0x90, 0x90, 0x90, 0xFF}
	colorReservado  = color.RGBA{0x50, 0x20, 0x20, 0xFF}
	colorCompartido = color.RGBA{0xF0, 0xF0, 0xF0, 0xFF}
	colorTexto      = color.RGBA{0xE0, 0xE0, 0xE0, 0xFF}

	paleta = []color.RGBA{
		{0x4E, 0x9A, 0x06, 0xFF},
		{0x34, 0x65, 0xA4, 0xFF},
		{0xC4, 0xA0, 0x00, 0xFF},
		{0x75, 0x50, 0x7B, 0xFF},
		{0x06, 0x98, 0x9A, 0xFF},
		{0xCE, 0x5C, 0x00, 0xFF},
		{0xCC, 0x00, 0x00, 0xFF},
		{0x8A, 0xE2, 0x34, 0xFF},
	}
)

// Visor guarda un PNG por tick en dir y deja una línea de texto en el log
type Visor struct {
	dir        string
	ultimoTick uint64
	cuadros    int
}

// Nuevo crea un visor que escribe en dir. Con dir vacío solo loguea.
func Nuevo(dir string) (*Visor, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error al crear directorio del visor: %w", err)
		}
	}
	return &Visor{dir: dir}, nil
}

// Cuadros devuelve cuántos PNG se escribieron
func (v *Visor) Cuadros() int {
	return v.cuadros
}

// Ruta devuelve el archivo donde se escribe el último cuadro
func (v *Visor) Ruta() string {
	return filepath.Join(v.dir, "memoria.png")
}

// Mostrar implementa kernel.Visor. Varias llamadas dentro del mismo tick
// producen un solo cuadro.
func (v *Visor) Mostrar(inst kernel.Instantanea) {
	if inst.Ticks == v.ultimoTick && v.cuadros > 0 {
		return
	}
	v.ultimoTick = inst.Ticks

	utils.InfoLog.Debug("memshow", "tick", inst.Ticks, "pid", inst.PID,
		"fisica", LineaFisica(inst), "virtual", LineaVirtual(inst))

	if v.dir == "" {
		return
	}
	if err := Dibujar(inst).SavePNG(v.Ruta()); err != nil {
		utils.ErrorLog.Error("Error guardando el mapa de memoria", "ruta", v.Ruta(), "error", err)
		return
	}
	v.cuadros++
}

// EscribirPNG codifica el cuadro de inst en w
func EscribirPNG(w io.Writer, inst kernel.Instantanea) error {
	return Dibujar(inst).EncodePNG(w)
}

func filas(paginas int) int {
	return (paginas + paginasPorFila - 1) / paginasPorFila
}

// Dibujar arma el cuadro: arriba la memoria física, abajo el espacio virtual
// del proceso mostrado.
func Dibujar(inst kernel.Instantanea) *gg.Context {
	l := inst.Layout
	virtuales := int(l.MemoriaVirtual / l.TamPagina)

	ancho := 2*margen + paginasPorFila*lado
	altoFisica := alturaTitulo + filas(len(inst.Marcos))*lado
	altoVirtual := alturaTitulo + filas(virtuales)*lado
	dc := gg.NewContext(ancho, 2*margen+altoFisica+margen+altoVirtual)

	dc.SetColor(colorFondo)
	dc.Clear()

	y := float64(margen)
	dc.SetColor(colorTexto)
	dc.DrawString(fmt.Sprintf("PHYSICAL MEMORY  tick %d", inst.Ticks), margen, y+12)
	y += alturaTitulo
	for marco, estado := range inst.Marcos {
		x, yy := celda(marco, y)
		dc.SetColor(colorMarco(estado))
		dc.DrawRectangle(x, yy, lado-1, lado-1)
		dc.Fill()
		if estado.Tabla {
			// Las páginas de tablas llevan un punto oscuro
			dc.SetColor(colorFondo)
			dc.DrawCircle(x+lado/2, yy+lado/2, 2)
			dc.Fill()
		}
	}

	y += float64(filas(len(inst.Marcos))*lado + margen)
	dc.SetColor(colorTexto)
	titulo := "VIRTUAL ADDRESS SPACE"
	if inst.PID != 0 {
		titulo = fmt.Sprintf("VIRTUAL ADDRESS SPACE FOR %d", inst.PID)
	}
	dc.DrawString(titulo, margen, y+12)
	y += alturaTitulo

	for i := 0; i < virtuales; i++ {
		x, yy := celda(i, y)
		dc.SetColor(colorFondo)
		dc.DrawRectangle(x, yy, lado-1, lado-1)
		dc.Fill()
	}
	for _, pg := range inst.Paginas {
		pagina := int(pg.VA / l.TamPagina)
		if pagina >= virtuales {
			continue
		}
		x, yy := celda(pagina, y)
		c := colorMarco(inst.Marcos[pg.PA/l.TamPagina])
		if !pg.Perm.Usuario() {
			c = atenuar(c)
		}
		dc.SetColor(c)
		dc.DrawRectangle(x, yy, lado-1, lado-1)
		dc.Fill()
		if pg.Perm.Usuario() && !pg.Perm.Escribible() {
			// Solo lectura: borde en lugar de relleno completo
			dc.SetColor(colorFondo)
			dc.DrawRectangle(x+2, yy+2, lado-5, lado-5)
			dc.Fill()
		}
	}
	return dc
}

func celda(indice int, y float64) (float64, float64) {
	return float64(margen + (indice%paginasPorFila)*lado), y + float64((indice/paginasPorFila)*lado)
}

func colorMarco(estado kernel.EstadoMarco) color.RGBA {
	switch {
	case estado.Duenio == kernel.DuenioKernel:
		return colorKernel
	case estado.Duenio == kernel.DuenioReservado:
		return colorReservado
	case estado.Duenio == kernel.DuenioCompartido:
		return colorCompartido
	case estado.Duenio > 0:
		return paleta[(estado.Duenio-1)%len(paleta)]
	case estado.RefCount > 0:
		return colorCompartido
	default:
		return colorLibre
	}
}

func atenuar(c color.RGBA) color.RGBA {
	return color.RGBA{c.R / 3, c.G / 3, c.B / 3, 0xFF}
}

// LineaFisica resume el pool de marcos con un carácter por marco:
// '.' libre, 'K' kernel, 'R' reservado, 'S' compartido, dígito hexa del dueño.
func LineaFisica(inst kernel.Instantanea) string {
	var sb strings.Builder
	sb.Grow(len(inst.Marcos))
	for _, estado := range inst.Marcos {
		sb.WriteByte(caracterMarco(estado))
	}
	return sb.String()
}

func caracterMarco(estado kernel.EstadoMarco) byte {
	switch {
	case estado.Duenio == kernel.DuenioKernel:
		return 'K'
	case estado.Duenio == kernel.DuenioReservado:
		return 'R'
	case estado.Duenio == kernel.DuenioCompartido:
		return 'S'
	case estado.Duenio > 0:
		return "0123456789ABCDEF"[estado.Duenio%16]
	default:
		return '.'
	}
}

// LineaVirtual resume el espacio del proceso mostrado: un carácter por página
// virtual, en minúscula si el mapeo es solo-kernel.
func LineaVirtual(inst kernel.Instantanea) string {
	l := inst.Layout
	linea := []byte(strings.Repeat(" ", int(l.MemoriaVirtual/l.TamPagina)))
	for _, pg := range inst.Paginas {
		pagina := pg.VA / l.TamPagina
		if pagina >= uint64(len(linea)) {
			continue
		}
		c := caracterMarco(inst.Marcos[pg.PA/l.TamPagina])
		if !pg.Perm.Usuario() && c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		linea[pagina] = c
	}
	return string(linea)
}

var _ kernel.Visor = (*Visor)(nil)

