// Package memoria administra la memoria física simulada del núcleo: el pool de
// marcos con sus contadores de referencias y los espacios de direcciones de los
// procesos, cuyas tablas de páginas de cuatro niveles viven dentro de los mismos
// marcos que administran.
package memoria

import (
	"fmt"
	"math/bits"
)

// Niveles de la tabla de páginas (estilo x86-64: PML4, PDPT, PD, PT)
const Niveles = 4

// Layout describe la disposición de la memoria física y virtual.
//
//	+-----+--------------------+----------------+--------------------+--------/
//	|     | Kernel      Kernel |       :    I/O | App 1        App 1 | App 2
//	|     | Code + Data  Stack |  ...  : Memory | Code + Data  Stack | ...
//	+-----+--------------------+----------------+--------------------+--------/
//	0  0x40000              0x80000 0xA0000 0x100000             0x140000
type Layout struct {
	TamPagina        uint64 `json:"TAM_PAGINA"`
	TamMemoria       uint64 `json:"TAM_MEMORIA"`       // Memoria física total
	MemoriaVirtual   uint64 `json:"MEMORIA_VIRTUAL"`   // Techo del espacio virtual de un proceso
	InicioKernel     uint64 `json:"INICIO_KERNEL"`     // Código y datos del kernel
	TopePilaKernel   uint64 `json:"TOPE_PILA_KERNEL"`  // Fin de la pila del kernel
	InicioIO         uint64 `json:"INICIO_IO"`         // Hueco de memoria de I/O
	FinIO            uint64 `json:"FIN_IO"`            // Primer byte después del hueco de I/O
	DireccionConsola uint64 `json:"DIRECCION_CONSOLA"` // Marco de consola compartido con los procesos
	InicioProcesos   uint64 `json:"INICIO_PROCESOS"`   // Límite kernel/procesos en el espacio virtual
}

// LayoutPorDefecto devuelve la disposición clásica de WeensyOS
func LayoutPorDefecto() Layout {
	return Layout{
		TamPagina:        0x1000,
		TamMemoria:       0x200000,
		MemoriaVirtual:   0x300000,
		InicioKernel:     0x40000,
		TopePilaKernel:   0x80000,
		InicioIO:         0xA0000,
		FinIO:            0x100000,
		DireccionConsola: 0xB8000,
		InicioProcesos:   0x100000,
	}
}

// CompletarConDefectos reemplaza los campos en cero por los valores por defecto
func (l Layout) CompletarConDefectos() Layout {
	d := LayoutPorDefecto()
	completar := func(campo *uint64, defecto uint64) {
		if *campo == 0 {
			*campo = defecto
		}
	}
	completar(&l.TamPagina, d.TamPagina)
	completar(&l.TamMemoria, d.TamMemoria)
	completar(&l.MemoriaVirtual, d.MemoriaVirtual)
	completar(&l.InicioKernel, d.InicioKernel)
	completar(&l.TopePilaKernel, d.TopePilaKernel)
	completar(&l.InicioIO, d.InicioIO)
	completar(&l.FinIO, d.FinIO)
	completar(&l.DireccionConsola, d.DireccionConsola)
	completar(&l.InicioProcesos, d.InicioProcesos)
	return l
}

// Validar comprueba que el layout sea representable por las tablas de cuatro niveles
func (l Layout) Validar() error {
	if l.TamPagina < 64 || bits.OnesCount64(l.TamPagina) != 1 {
		return fmt.Errorf("TAM_PAGINA debe ser potencia de dos mayor o igual a 64: %#x", l.TamPagina)
	}

	alineadas := map[string]uint64{
		"TAM_MEMORIA":       l.TamMemoria,
		"MEMORIA_VIRTUAL":   l.MemoriaVirtual,
		"INICIO_KERNEL":     l.InicioKernel,
		"TOPE_PILA_KERNEL":  l.TopePilaKernel,
		"INICIO_IO":         l.InicioIO,
		"FIN_IO":            l.FinIO,
		"DIRECCION_CONSOLA": l.DireccionConsola,
		"INICIO_PROCESOS":   l.InicioProcesos,
	}
	for nombre, valor := range alineadas {
		if valor%l.TamPagina != 0 {
			return fmt.Errorf("%s no está alineado a página: %#x", nombre, valor)
		}
	}

	switch {
	case l.InicioKernel == 0 || l.InicioKernel > l.TopePilaKernel:
		return fmt.Errorf("región del kernel inválida: [%#x, %#x)", l.InicioKernel, l.TopePilaKernel)
	case l.InicioIO > l.FinIO:
		return fmt.Errorf("hueco de I/O inválido: [%#x, %#x)", l.InicioIO, l.FinIO)
	case l.DireccionConsola >= l.InicioProcesos:
		return fmt.Errorf("la consola %#x debe quedar debajo de INICIO_PROCESOS %#x", l.DireccionConsola, l.InicioProcesos)
	case l.InicioProcesos > l.TamMemoria:
		return fmt.Errorf("INICIO_PROCESOS %#x excede la memoria física %#x", l.InicioProcesos, l.TamMemoria)
	case l.InicioProcesos+l.TamPagina > l.MemoriaVirtual:
		return fmt.Errorf("MEMORIA_VIRTUAL %#x no deja lugar para procesos", l.MemoriaVirtual)
	case l.MemoriaVirtual > l.CoberturaVirtual():
		return fmt.Errorf("MEMORIA_VIRTUAL %#x excede lo que cubren %d niveles (%#x)", l.MemoriaVirtual, Niveles, l.CoberturaVirtual())
	}
	return nil
}

// EntradasPorTabla devuelve cuántas entradas de 8 bytes entran en una página
func (l Layout) EntradasPorTabla() uint64 {
	return l.TamPagina / 8
}

// CantidadMarcos devuelve el número de marcos de la memoria física
func (l Layout) CantidadMarcos() int {
	return int(l.TamMemoria / l.TamPagina)
}

// CoberturaVirtual devuelve el tamaño del espacio virtual alcanzable por la tabla
func (l Layout) CoberturaVirtual() uint64 {
	desplazamiento := l.bitsPagina() + Niveles*l.bitsIndice()
	if desplazamiento >= 64 {
		return ^uint64(0)
	}
	return uint64(1) << desplazamiento
}

// RedondearAbajo alinea una dirección al comienzo de su página
func (l Layout) RedondearAbajo(direccion uint64) uint64 {
	return direccion &^ (l.TamPagina - 1)
}

// Reservada indica si una dirección física nunca puede asignarse:
// la página cero, el hueco de I/O (incluye la consola) y la imagen y pila del kernel.
func (l Layout) Reservada(pa uint64) bool {
	return pa < l.TamPagina ||
		(pa >= l.InicioIO && pa < l.FinIO) ||
		(pa >= l.InicioKernel && pa < l.TopePilaKernel) ||
		pa == l.DireccionConsola
}

func (l Layout) bitsPagina() uint64 {
	return uint64(bits.TrailingZeros64(l.TamPagina))
}

func (l Layout) bitsIndice() uint64 {
	return uint64(bits.TrailingZeros64(l.EntradasPorTabla()))
}

// indice devuelve el índice de va en la tabla del nivel dado (Niveles-1 es la raíz, 0 la hoja)
func (l Layout) indice(va uint64, nivel int) uint64 {
	return (va >> (l.bitsPagina() + uint64(nivel)*l.bitsIndice())) & (l.EntradasPorTabla() - 1)
}

// alcance devuelve cuántos bytes virtuales cubre una entrada del nivel dado
func (l Layout) alcance(nivel int) uint64 {
	return uint64(1) << (l.bitsPagina() + uint64(nivel)*l.bitsIndice())
}
