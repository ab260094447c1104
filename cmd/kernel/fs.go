package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// SistemaArchivos es la capa de archivos sobre la que viven los archivos de
// swap: archivos regulares en un directorio raíz, con un log transaccional
// mínimo (begin_op/end_op) que serializa las operaciones de metadatos.
type SistemaArchivos struct {
	raiz string

	logMu  sync.Mutex
	logOps int
}

func nuevoSistemaArchivos(raiz string) (*SistemaArchivos, error) {
	if err := os.MkdirAll(raiz, 0755); err != nil {
		return nil, fmt.Errorf("error creando directorio raíz %s: %v", raiz, err)
	}
	return &SistemaArchivos{raiz: raiz}, nil
}

// IniciarLog repone el log al arrancar: acá solo releva los archivos que
// quedaron de una corrida anterior
func (fs *SistemaArchivos) IniciarLog() {
	entradas, err := os.ReadDir(fs.raiz)
	if err != nil {
		utils.ErrorLog.Error("Error relevando raíz del sistema de archivos", "error", err)
		return
	}
	utils.InfoLog.Info("Log del sistema de archivos iniciado", "raiz", fs.raiz, "archivos", len(entradas))
}

// BeginOp abre una operación transaccional sobre los metadatos
func (fs *SistemaArchivos) BeginOp() {
	fs.logMu.Lock()
	fs.logOps++
}

// EndOp cierra la operación abierta por BeginOp
func (fs *SistemaArchivos) EndOp() {
	fs.logOps--
	fs.logMu.Unlock()
}

func (fs *SistemaArchivos) ruta(nombre string) string {
	return filepath.Join(fs.raiz, nombre)
}

// Crear crea (o trunca) un archivo regular y devuelve su manejador
func (fs *SistemaArchivos) Crear(nombre string) (*Archivo, error) {
	fs.BeginOp()
	defer fs.EndOp()

	f, err := os.OpenFile(fs.ruta(nombre), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creando %s: %v", nombre, err)
	}
	return &Archivo{Nombre: nombre, f: f, ref: 1, lectura: true, escritura: true}, nil
}

// Abrir abre un archivo existente
func (fs *SistemaArchivos) Abrir(nombre string, escritura bool) (*Archivo, error) {
	fs.BeginOp()
	defer fs.EndOp()

	modo := os.O_RDONLY
	if escritura {
		modo = os.O_RDWR
	}
	f, err := os.OpenFile(fs.ruta(nombre), modo, 0644)
	if err != nil {
		return nil, fmt.Errorf("error abriendo %s: %v", nombre, err)
	}
	return &Archivo{Nombre: nombre, f: f, ref: 1, lectura: true, escritura: escritura}, nil
}

// Eliminar borra la entrada de directorio del archivo
func (fs *SistemaArchivos) Eliminar(nombre string) error {
	fs.BeginOp()
	defer fs.EndOp()

	if err := os.Remove(fs.ruta(nombre)); err != nil {
		return fmt.Errorf("error eliminando %s: %v", nombre, err)
	}
	return nil
}

// Existe indica si el archivo está en el directorio raíz
func (fs *SistemaArchivos) Existe(nombre string) bool {
	_, err := os.Stat(fs.ruta(nombre))
	return err == nil
}

// Listar devuelve los nombres presentes en la raíz
func (fs *SistemaArchivos) Listar() []string {
	entradas, err := os.ReadDir(fs.raiz)
	if err != nil {
		return nil
	}
	nombres := make([]string, 0, len(entradas))
	for _, e := range entradas {
		nombres = append(nombres, e.Name())
	}
	return nombres
}

// Archivo es un manejador abierto con contador de referencias; los
// descriptores de los procesos apuntan acá
type Archivo struct {
	mu        sync.Mutex
	Nombre    string
	f         *os.File
	ref       int
	lectura   bool
	escritura bool
}

// Dup suma una referencia al manejador
func (a *Archivo) Dup() *Archivo {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ref++
	return a
}

// Cerrar resta una referencia y cierra el archivo al llegar a cero
func (a *Archivo) Cerrar() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ref--
	if a.ref <= 0 && a.f != nil {
		a.f.Close()
		a.f = nil
	}
}

// Referencias devuelve el contador actual
func (a *Archivo) Referencias() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ref
}

// EscribirEn escribe buf en la posición off del archivo
func (a *Archivo) EscribirEn(buf []byte, off int64) (int, error) {
	if !a.escritura {
		return -1, fmt.Errorf("archivo %s no abierto para escritura", a.Nombre)
	}
	return a.f.WriteAt(buf, off)
}

// LeerEn lee len(buf) bytes desde la posición off
func (a *Archivo) LeerEn(buf []byte, off int64) (int, error) {
	if !a.lectura {
		return -1, fmt.Errorf("archivo %s no abierto para lectura", a.Nombre)
	}
	return a.f.ReadAt(buf, off)
}

// Inodo es una referencia contada a una entrada del árbol de directorios;
// alcanza para sostener el cwd de los procesos
type Inodo struct {
	mu   sync.Mutex
	Ruta string
	ref  int
}

func nuevoInodo(ruta string) *Inodo {
	return &Inodo{Ruta: ruta, ref: 1}
}

// Dup suma una referencia (idup)
func (i *Inodo) Dup() *Inodo {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ref++
	return i
}

// Soltar resta una referencia (iput)
func (i *Inodo) Soltar() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ref--
}
