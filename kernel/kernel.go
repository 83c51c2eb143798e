// Package kernel implementa la tabla de procesos, el planificador y los
// despachadores de excepciones y llamadas al sistema de un núcleo monoprocesador.
//
// Todo el estado vive en un *Kernel creado en el arranque. Ningún método es
// reentrante: el llamador garantiza una sola entrada al kernel a la vez, como
// lo haría el hardware con las interrupciones deshabilitadas. La única excepción
// es el contador de ticks, que puede leerse desde cualquier goroutine.
package kernel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// Visor es el colaborador que dibuja el estado de la memoria
type Visor interface {
	Mostrar(Instantanea)
}

// ControladorInterrupciones recibe el acuse de cada interrupción del timer
type ControladorInterrupciones interface {
	Ack()
}

// Opciones conecta los colaboradores externos del núcleo. Todos son opcionales.
type Opciones struct {
	Visor       Visor
	Controlador ControladorInterrupciones
	Parada      func() bool // Consulta no bloqueante de la señal de parada
}

// Kernel es el estado completo del núcleo
type Kernel struct {
	config   Config
	mem      *memoria.Memoria
	procesos []*Proceso
	actual   *Proceso

	// ejecutando es true mientras actual tiene el control (después de un Reanudar)
	ejecutando bool
	detenido   bool

	ticks atomic.Uint64

	visor       Visor
	controlador ControladorInterrupciones
	parada      func() bool

	giros           uint64
	visorUltimoTick uint64
	visorMostrando  int
}

// Nuevo inicializa la memoria física y la tabla de procesos con todas las ranuras libres
func Nuevo(config Config, opciones Opciones) (*Kernel, error) {
	config = config.CompletarConDefectos()
	if err := config.Validar(); err != nil {
		return nil, fmt.Errorf("configuración inválida: %w", err)
	}

	mem, err := memoria.NuevaMemoria(config.Layout)
	if err != nil {
		return nil, err
	}
	// La referencia propia del kernel a la consola: nunca vuelve al pool
	if err := mem.Referenciar(config.DireccionConsola); err != nil {
		return nil, err
	}

	k := &Kernel{
		config:      config,
		mem:         mem,
		procesos:    make([]*Proceso, config.CantidadProcesos),
		visor:       opciones.Visor,
		controlador: opciones.Controlador,
		parada:      opciones.Parada,
	}
	for pid := range k.procesos {
		k.procesos[pid] = &Proceso{PID: pid, Estado: EstadoFree}
	}
	k.ticks.Store(1)

	utils.InfoLog.Info("Kernel inicializado",
		"procesos", config.CantidadProcesos,
		"hz", config.HZ,
		"modo_sleep", config.ModoSleep,
		"marcos_libres", mem.MarcosLibres())

	return k, nil
}

// Config devuelve la configuración efectiva
func (k *Kernel) Config() Config {
	return k.config
}

// Memoria devuelve la memoria física del kernel
func (k *Kernel) Memoria() *memoria.Memoria {
	return k.mem
}

// Ticks lee el contador de ticks; es seguro desde cualquier goroutine
func (k *Kernel) Ticks() uint64 {
	return k.ticks.Load()
}

// ContarTick avanza el contador sin entrar al kernel (el reloj de hardware
// sigue contando aunque la interrupción no pueda atenderse).
func (k *Kernel) ContarTick() uint64 {
	return k.ticks.Add(1)
}

// Proceso devuelve el descriptor de la ranura pid
func (k *Kernel) Proceso(pid int) (*Proceso, error) {
	if pid <= 0 || pid >= len(k.procesos) {
		return nil, fmt.Errorf("%w: %d", ErrPIDInvalido, pid)
	}
	return k.procesos[pid], nil
}

// Actual devuelve el proceso en ejecución, o nil si el kernel está girando
func (k *Kernel) Actual() *Proceso {
	if !k.ejecutando {
		return nil
	}
	return k.actual
}

// Detenido indica si el kernel entró en pánico o vio la señal de parada
func (k *Kernel) Detenido() bool {
	return k.detenido
}

// Crear carga un programa en la ranura pid: espacio nuevo con el prefijo del
// kernel, una página por cada página virtual de cada segmento, una página de
// pila al tope del espacio virtual, y el proceso queda RUNNABLE. Si algo falla
// se devuelve todo lo asignado y la ranura queda FREE.
func (k *Kernel) Crear(pid int, programa *Programa) error {
	p, err := k.Proceso(pid)
	if err != nil {
		return err
	}
	if p.Estado != EstadoFree {
		return fmt.Errorf("la ranura %d no está libre (%s)", pid, p.Estado)
	}

	utils.InfoLog.Info("Creando proceso", "pid", pid, "programa", programa.Nombre, "segmentos", len(programa.Segmentos))

	esp, err := memoria.NuevoEspacio(k.mem)
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	if err := k.cargarEspacio(esp, programa); err != nil {
		utils.ErrorLog.Error("Error creando proceso", "pid", pid, "error", err)
		return errors.Join(fmt.Errorf("pid %d: %w", pid, err), esp.Destruir())
	}

	p.liberarRanura()
	p.Espacio = esp
	p.Regs.RIP = programa.Entrada
	p.Regs.RSP = k.config.MemoriaVirtual
	p.Estado = EstadoRunnable

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Proceso Creado - Programa: %s - Marcos libres: %d",
		pid, programa.Nombre, k.mem.MarcosLibres()))
	return nil
}

func (k *Kernel) cargarEspacio(esp *memoria.EspacioDirecciones, programa *Programa) error {
	l := k.config.Layout
	if err := esp.MapearPrefijoKernel(); err != nil {
		return err
	}

	for i, seg := range programa.Segmentos {
		if seg.Tamanio == 0 {
			continue
		}
		if seg.VA < l.InicioProcesos || seg.VA+seg.Tamanio > l.MemoriaVirtual || uint64(len(seg.Datos)) > seg.Tamanio {
			return fmt.Errorf("segmento %d fuera de la región de procesos: va %#x tamaño %#x", i, seg.VA, seg.Tamanio)
		}

		perm := memoria.PermUsuarioLectura
		if seg.Escribible {
			perm = memoria.PermUsuarioEscritura
		}
		for va := l.RedondearAbajo(seg.VA); va < seg.VA+seg.Tamanio; va += l.TamPagina {
			if _, _, mapeada := esp.Traducir(va); mapeada {
				// Dos segmentos comparten la página
				continue
			}
			if err := k.mapearPaginaNueva(esp, va, perm); err != nil {
				return fmt.Errorf("segmento %d: %w", i, err)
			}
		}

		if err := copiarAEspacio(esp, seg.VA, seg.Datos); err != nil {
			return fmt.Errorf("segmento %d: %w", i, err)
		}
	}

	return k.mapearPaginaNueva(esp, l.MemoriaVirtual-l.TamPagina, memoria.PermUsuarioEscritura)
}

// mapearPaginaNueva asigna un marco y lo instala; si no se puede instalar lo devuelve
func (k *Kernel) mapearPaginaNueva(esp *memoria.EspacioDirecciones, va uint64, perm memoria.Permiso) error {
	pa, err := k.mem.Asignar(k.config.TamPagina)
	if err != nil {
		return err
	}
	if err := esp.Instalar(va, pa, perm); err != nil {
		return errors.Join(err, k.mem.Liberar(pa))
	}
	return nil
}

// copiarAEspacio copia datos a partir de va página por página, sin chequear permisos
func copiarAEspacio(esp *memoria.EspacioDirecciones, va uint64, datos []byte) error {
	mem := esp.Memoria()
	l := mem.Layout()
	for len(datos) > 0 {
		pa, _, ok := esp.Traducir(va)
		if !ok {
			return fmt.Errorf("%w: va %#x sin mapear", memoria.ErrDireccionInvalida, va)
		}
		desplazamiento := pa & (l.TamPagina - 1)
		n := copy(mem.Pagina(pa)[desplazamiento:], datos)
		datos = datos[n:]
		va += uint64(n)
	}
	return nil
}

// Terminar destruye el espacio del proceso y libera su ranura
func (k *Kernel) Terminar(pid int) error {
	p, err := k.Proceso(pid)
	if err != nil {
		return err
	}
	if p.Estado == EstadoFree {
		return fmt.Errorf("%w: la ranura %d ya está libre", ErrPIDInvalido, pid)
	}

	if err := p.Espacio.Destruir(); err != nil {
		return err
	}
	logMetricasFinales(p)
	p.liberarRanura()

	utils.InfoLog.Info("Proceso terminado", "pid", pid, "marcos_libres", k.mem.MarcosLibres())
	return nil
}

// Arrancar transfiere el control al primer proceso, como al final del boot
func (k *Kernel) Arrancar() (Decision, error) {
	utils.InfoLog.Info("Starting WeensyOS")
	if p := k.procesos[1]; p.Estado == EstadoRunnable {
		return k.Ejecutar(p)
	}
	return k.Planificar()
}

// Auditar recalcula los contadores de referencias a partir de todos los espacios
// vivos y los compara con los de la memoria física.
func (k *Kernel) Auditar() error {
	esperado := map[uint64]int{k.config.DireccionConsola: 1}
	for _, p := range k.procesos {
		if p.Estado == EstadoFree || p.Espacio == nil {
			continue
		}
		p.Espacio.ContarMapeosUsuario(esperado)
		for _, pa := range p.Espacio.PaginasDeTabla() {
			esperado[pa]++
		}
	}

	var diferencias []string
	for marco, refs := range k.mem.Contadores() {
		pa := uint64(marco) * k.config.TamPagina
		if refs != esperado[pa] {
			diferencias = append(diferencias, fmt.Sprintf("%#x: refcount %d, mapeos %d", pa, refs, esperado[pa]))
		}
	}
	if len(diferencias) > 0 {
		sort.Strings(diferencias)
		return fmt.Errorf("contabilidad de marcos inconsistente: %s", strings.Join(diferencias, "; "))
	}
	return nil
}

// ResumenProceso es una fila de la tabla de procesos para diagnóstico
type ResumenProceso struct {
	PID     int    `json:"pid"`
	Estado  string `json:"estado"`
	RIP     uint64 `json:"rip"`
	RSP     uint64 `json:"rsp"`
	Paginas int    `json:"paginas_usuario"`
}

// Resumen lista las ranuras no libres
func (k *Kernel) Resumen() []ResumenProceso {
	var filas []ResumenProceso
	for _, p := range k.procesos {
		if p.Estado == EstadoFree {
			continue
		}
		conteo := map[uint64]int{}
		p.Espacio.ContarMapeosUsuario(conteo)
		paginas := 0
		for pa, n := range conteo {
			if pa != k.config.DireccionConsola {
				paginas += n
			}
		}
		filas = append(filas, ResumenProceso{
			PID:     p.PID,
			Estado:  p.Estado.String(),
			RIP:     p.Regs.RIP,
			RSP:     p.Regs.RSP,
			Paginas: paginas,
		})
	}
	return filas
}

// CrearMemoryDump vuelca las páginas de usuario de pid a un archivo en dir
func (k *Kernel) CrearMemoryDump(pid int, dir string) (string, error) {
	p, err := k.Proceso(pid)
	if err != nil {
		return "", err
	}
	if p.Estado == EstadoFree {
		return "", fmt.Errorf("%w: la ranura %d está libre", ErrPIDInvalido, pid)
	}
	return memoria.CrearMemoryDump(p.Espacio, dir, pid)
}
