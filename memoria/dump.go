package memoria

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// VolcarPaginasUsuario escribe el contenido de cada página de usuario en orden
// ascendente de dirección virtual y devuelve cuántas páginas escribió.
func (e *EspacioDirecciones) VolcarPaginasUsuario(w io.Writer) (int, error) {
	l := e.mem.layout
	paginas := 0
	for it := e.Iterador(0); it.VA() < l.MemoriaVirtual; it.Siguiente() {
		if !it.Presente() || e.esCompartidaPorKernel(it) {
			continue
		}
		pa, _ := it.Marco()
		if _, err := w.Write(e.mem.Pagina(pa)); err != nil {
			return paginas, fmt.Errorf("error al escribir la página %#x: %w", it.VA(), err)
		}
		paginas++
	}
	return paginas, nil
}

// CrearMemoryDump crea <dir>/<pid>-<timestamp>.dmp con las páginas de usuario del espacio
func CrearMemoryDump(e *EspacioDirecciones, dir string, pid int) (string, error) {
	utils.InfoLog.Info("Iniciando memory dump", "pid", pid)

	timestamp := time.Now().Format("20060102-150405")
	nombreArchivo := fmt.Sprintf("%d-%s.dmp", pid, timestamp)
	rutaCompleta := filepath.Join(dir, nombreArchivo)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error al crear directorio para dumps: %w", err)
	}

	dumpFile, err := os.Create(rutaCompleta)
	if err != nil {
		return "", fmt.Errorf("error al crear archivo de dump: %w", err)
	}
	defer dumpFile.Close()

	paginas, err := e.VolcarPaginasUsuario(dumpFile)
	if err != nil {
		return "", err
	}

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d Memory Dump solicitado", pid))
	utils.InfoLog.Info("Memory dump completado", "pid", pid, "archivo", nombreArchivo, "paginas", paginas)

	return rutaCompleta, nil
}
