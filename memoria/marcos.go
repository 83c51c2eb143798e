package memoria

import (
	"errors"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

var (
	ErrSinMemoria        = errors.New("no hay marcos libres disponibles")
	ErrTamanioInvalido   = errors.New("solo se asignan páginas individuales")
	ErrDobleLiberacion   = errors.New("liberación de un marco sin referencias")
	ErrDireccionInvalida = errors.New("dirección inválida")
	ErrConflictoAlias    = errors.New("la dirección virtual ya está mapeada")
)

// Memoria es la memoria física simulada con un contador de referencias por marco.
// Un marco está libre si y solo si su contador vale cero.
type Memoria struct {
	layout   Layout
	datos    []byte
	refcount []int
}

// NuevaMemoria crea la memoria física con todos los marcos libres
func NuevaMemoria(layout Layout) (*Memoria, error) {
	if err := layout.Validar(); err != nil {
		return nil, err
	}

	m := &Memoria{
		layout:   layout,
		datos:    make([]byte, layout.TamMemoria),
		refcount: make([]int, layout.CantidadMarcos()),
	}

	utils.InfoLog.Info("Memoria física inicializada",
		"tamaño_total", layout.TamMemoria,
		"tamaño_página", layout.TamPagina,
		"total_marcos", len(m.refcount),
		"marcos_asignables", m.MarcosLibres())

	return m, nil
}

// Layout devuelve la disposición con la que se creó la memoria
func (m *Memoria) Layout() Layout {
	return m.layout
}

// Asignable indica si el marco en pa puede entregarse alguna vez
func (m *Memoria) Asignable(pa uint64) bool {
	return pa < m.layout.TamMemoria && pa%m.layout.TamPagina == 0 && !m.layout.Reservada(pa)
}

// Asignar entrega el primer marco asignable libre (menor dirección primero),
// con contador en 1 y relleno con ceros.
func (m *Memoria) Asignar(tamanio uint64) (uint64, error) {
	if tamanio > m.layout.TamPagina {
		utils.ErrorLog.Warn("Asignación mayor a una página rechazada", "tamanio", tamanio, "tam_pagina", m.layout.TamPagina)
		return 0, fmt.Errorf("%w: pedido de %d bytes", ErrTamanioInvalido, tamanio)
	}

	for marco := range m.refcount {
		pa := uint64(marco) * m.layout.TamPagina
		if m.refcount[marco] != 0 || !m.Asignable(pa) {
			continue
		}

		m.refcount[marco] = 1
		clear(m.Pagina(pa))

		utils.InfoLog.Debug("Marco asignado", "marco", marco, "pa", pa)
		return pa, nil
	}

	utils.ErrorLog.Warn("No hay marcos libres disponibles", "total_marcos", len(m.refcount))
	return 0, ErrSinMemoria
}

// Liberar descuenta una referencia al marco. pa == 0 no hace nada.
// Descontar un marco que ya está en cero es un error del kernel.
func (m *Memoria) Liberar(pa uint64) error {
	if pa == 0 {
		return nil
	}

	marco, err := m.marco(pa)
	if err != nil {
		return err
	}

	if m.refcount[marco] == 0 {
		utils.ErrorLog.Error("Doble liberación de marco", "marco", marco, "pa", pa)
		return fmt.Errorf("%w: pa %#x", ErrDobleLiberacion, pa)
	}

	m.refcount[marco]--
	utils.InfoLog.Debug("Marco liberado", "marco", marco, "pa", pa, "refcount", m.refcount[marco])
	return nil
}

// Referenciar suma una referencia a un marco que ya está en uso (páginas compartidas)
func (m *Memoria) Referenciar(pa uint64) error {
	marco, err := m.marco(pa)
	if err != nil {
		return err
	}
	m.refcount[marco]++
	return nil
}

// RefCount devuelve el contador de referencias del marco que contiene pa
func (m *Memoria) RefCount(pa uint64) int {
	marco, err := m.marco(m.layout.RedondearAbajo(pa))
	if err != nil {
		return 0
	}
	return m.refcount[marco]
}

// Pagina devuelve la vista de bytes del marco que comienza en pa
func (m *Memoria) Pagina(pa uint64) []byte {
	pa = m.layout.RedondearAbajo(pa)
	return m.datos[pa : pa+m.layout.TamPagina]
}

// MarcosEnUso cuenta los marcos asignables con referencias
func (m *Memoria) MarcosEnUso() int {
	enUso := 0
	for marco, refs := range m.refcount {
		if refs > 0 && m.Asignable(uint64(marco)*m.layout.TamPagina) {
			enUso++
		}
	}
	return enUso
}

// MarcosLibres cuenta los marcos asignables sin referencias
func (m *Memoria) MarcosLibres() int {
	libres := 0
	for marco, refs := range m.refcount {
		if refs == 0 && m.Asignable(uint64(marco)*m.layout.TamPagina) {
			libres++
		}
	}
	return libres
}

// Contadores devuelve una copia de los contadores de referencias por marco
func (m *Memoria) Contadores() []int {
	copia := make([]int, len(m.refcount))
	copy(copia, m.refcount)
	return copia
}

func (m *Memoria) marco(pa uint64) (int, error) {
	if pa%m.layout.TamPagina != 0 || pa >= m.layout.TamMemoria {
		return 0, fmt.Errorf("%w: pa %#x fuera de la memoria física o desalineada", ErrDireccionInvalida, pa)
	}
	return int(pa / m.layout.TamPagina), nil
}
