package memoria

import (
	"fmt"
)

// buscarEntrada recorre los niveles desde la raíz hasta la PTE hoja de va.
// Con crear, las tablas intermedias ausentes se asignan; si no hay memoria
// devuelve ErrSinMemoria. Sin crear, devuelve 0 si algún nivel está ausente.
// También devuelve el permiso acumulado de los niveles intermedios.
func (e *EspacioDirecciones) buscarEntrada(va uint64, crear bool) (uint64, Permiso, error) {
	l := e.mem.layout
	tabla := e.raiz
	acumulado := PermUsuarioEscritura

	for nivel := Niveles - 1; nivel > 0; nivel-- {
		direccionPTE := tabla + l.indice(va, nivel)*8
		ent := e.mem.leerEntrada(direccionPTE)

		if !ent.permiso().Presente() {
			if !crear {
				return 0, PermAusente, nil
			}

			nueva, err := e.mem.Asignar(l.TamPagina)
			if err != nil {
				return 0, PermAusente, fmt.Errorf("no se pudo extender la tabla de páginas en nivel %d para va %#x: %w", nivel, va, err)
			}
			ent = nuevaEntrada(nueva, PermUsuarioEscritura)
			e.mem.escribirEntrada(direccionPTE, ent)
		}

		acumulado &= ent.permiso()
		tabla = ent.direccion(l)
	}

	return tabla + l.indice(va, 0)*8, acumulado, nil
}

// Iterador recorre un espacio de direcciones de a una página, exponiendo la
// dirección virtual actual y, si está presente, su marco y su permiso.
type Iterador struct {
	esp  *EspacioDirecciones
	va   uint64
	pte  uint64
	perm Permiso
	ent  entrada
}

// Iterador crea un iterador posicionado en va
func (e *EspacioDirecciones) Iterador(va uint64) *Iterador {
	it := &Iterador{esp: e}
	it.Ir(va)
	return it
}

// Ir reposiciona el iterador en va
func (it *Iterador) Ir(va uint64) {
	it.va = va
	it.pte, it.perm, _ = it.esp.buscarEntrada(va, false)
	it.ent = 0
	if it.pte != 0 {
		it.ent = it.esp.mem.leerEntrada(it.pte)
	}
}

// Avanzar mueve el iterador delta bytes
func (it *Iterador) Avanzar(delta uint64) {
	it.Ir(it.va + delta)
}

// Siguiente mueve el iterador al comienzo de la página siguiente
func (it *Iterador) Siguiente() {
	l := it.esp.mem.layout
	it.Ir(l.RedondearAbajo(it.va) + l.TamPagina)
}

// VA devuelve la dirección virtual actual
func (it *Iterador) VA() uint64 {
	return it.va
}

// PA devuelve la dirección física de VA, o false si no está mapeada
func (it *Iterador) PA() (uint64, bool) {
	if !it.Presente() {
		return 0, false
	}
	l := it.esp.mem.layout
	return it.ent.direccion(l) + (it.va & (l.TamPagina - 1)), true
}

// Marco devuelve el comienzo del marco mapeado en VA, o false si no está mapeada
func (it *Iterador) Marco() (uint64, bool) {
	if !it.Presente() {
		return 0, false
	}
	return it.ent.direccion(it.esp.mem.layout), true
}

// Perm devuelve el permiso efectivo de VA: la hoja restringida por los niveles superiores
func (it *Iterador) Perm() Permiso {
	if it.pte == 0 || !it.ent.permiso().Presente() {
		return PermAusente
	}
	return it.ent.permiso() & (it.perm | PermPresente)
}

func (it *Iterador) Presente() bool   { return it.Perm().Presente() }
func (it *Iterador) Usuario() bool    { return it.Perm().Usuario() }
func (it *Iterador) Escribible() bool { return it.Perm().Escribible() }

// Mapear instala pa con perm en la página actual, reemplazando lo que hubiera.
// Falla sin modificar la hoja si no se pudo extender la tabla.
func (it *Iterador) Mapear(pa uint64, perm Permiso) error {
	l := it.esp.mem.layout
	if pa%l.TamPagina != 0 || (perm.Presente() && pa >= l.TamMemoria) {
		return fmt.Errorf("%w: pa %#x", ErrDireccionInvalida, pa)
	}

	direccionPTE, _, err := it.esp.buscarEntrada(it.va, perm.Presente())
	if err != nil {
		return err
	}
	if direccionPTE == 0 {
		// Desmapear algo que nunca tuvo tabla: no hay nada que tocar
		return nil
	}

	if perm.Presente() {
		it.esp.mem.escribirEntrada(direccionPTE, nuevaEntrada(pa, perm))
	} else {
		it.esp.mem.escribirEntrada(direccionPTE, 0)
	}
	it.Ir(it.va)
	return nil
}
