// Package runtime provides the Runtime interface for workflow execution
// backends.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubernetesConfig holds configuration for the Kubernetes runtime.
type KubernetesConfig struct {
	// Namespace where workflow jobs are created
	Namespace string
	// ServiceAccount for job pods (optional)
	ServiceAccount string
	// Default resource limits for jobs
	DefaultCPULimit    string
	DefaultMemoryLimit string
}

// KubernetesRuntime runs workflows as Kubernetes Jobs.
type KubernetesRuntime struct {
	clientset kubernetes.Interface
	config    KubernetesConfig
}

// KubernetesHandle represents a running Kubernetes Job.
type KubernetesHandle struct {
	clientset kubernetes.Interface
	namespace string
	jobName   string
	podName   string // Populated after pod starts
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return os.Getenv("USERPROFILE") // Windows
}

// NewKubernetesRuntime creates a Kubernetes-based runtime. It tries
// in-cluster configuration first and falls back to kubeconfig for local
// development.
func NewKubernetesRuntime(cfg KubernetesConfig) (*KubernetesRuntime, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		log.Printf("In-cluster config not available, trying kubeconfig: %v", err)
		kubeconfig := filepath.Join(homeDir(), ".kube", "config")
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
		}
		log.Printf("Using kubeconfig: %s", kubeconfig)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.DefaultCPULimit == "" {
		cfg.DefaultCPULimit = "500m"
	}
	if cfg.DefaultMemoryLimit == "" {
		cfg.DefaultMemoryLimit = "256Mi"
	}

	return &KubernetesRuntime{
		clientset: clientset,
		config:    cfg,
	}, nil
}

// Start implements Runtime.Start by creating a Kubernetes Job. When a
// workspace dir is given it is mounted as a hostPath volume at the same
// path; the runner and the job pod must share a node for that to work.
func (k *KubernetesRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	jobName := fmt.Sprintf("leadrunner-%d", time.Now().UnixNano())

	var envVars []corev1.EnvVar
	for key, value := range opts.Env {
		envVars = append(envVars, corev1.EnvVar{Name: key, Value: value})
	}

	resources := corev1.ResourceRequirements{
		Limits: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(k.config.DefaultCPULimit),
			corev1.ResourceMemory: resource.MustParse(k.config.DefaultMemoryLimit),
		},
	}

	container := corev1.Container{
		Name:       "workflow",
		Image:      opts.Image,
		Command:    opts.Command,
		Env:        envVars,
		Resources:  resources,
		WorkingDir: opts.Dir,
	}

	var volumes []corev1.Volume
	if opts.Dir != "" {
		hostPathType := corev1.HostPathDirectory
		volumes = append(volumes, corev1.Volume{
			Name: "workspace",
			VolumeSource: corev1.VolumeSource{
				HostPath: &corev1.HostPathVolumeSource{Path: opts.Dir, Type: &hostPathType},
			},
		})
		container.VolumeMounts = append(container.VolumeMounts, corev1.VolumeMount{
			Name:      "workspace",
			MountPath: opts.Dir,
		})
	}

	// No pod-level retries; run outcomes are recorded once.
	backoffLimit := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: k.config.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "leadrunner",
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"job-name":                     jobName,
						"app.kubernetes.io/managed-by": "leadrunner",
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers:    []corev1.Container{container},
					Volumes:       volumes,
				},
			},
		},
	}

	if k.config.ServiceAccount != "" {
		job.Spec.Template.Spec.ServiceAccountName = k.config.ServiceAccount
	}

	createdJob, err := k.clientset.BatchV1().Jobs(k.config.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes job: %w", err)
	}

	log.Printf("Created Kubernetes Job %s in namespace %s", createdJob.Name, k.config.Namespace)

	return &KubernetesHandle{
		clientset: k.clientset,
		namespace: k.config.Namespace,
		jobName:   createdJob.Name,
	}, nil
}

// Wait blocks until the job's pod completes and returns the result.
func (h *KubernetesHandle) Wait(ctx context.Context) (ExitResult, error) {
	podName, err := h.waitForPod(ctx)
	if err != nil {
		return ExitResult{ExitCode: -1, Error: err}, err
	}
	h.podName = podName

	watcher, err := h.clientset.CoreV1().Pods(h.namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("metadata.name=%s", podName),
	})
	if err != nil {
		return ExitResult{ExitCode: -1, Error: err}, err
	}
	defer watcher.Stop()

	for event := range watcher.ResultChan() {
		if event.Type == watch.Error {
			return ExitResult{ExitCode: -1, Error: fmt.Errorf("watch error")}, fmt.Errorf("watch error")
		}

		pod, ok := event.Object.(*corev1.Pod)
		if !ok {
			continue
		}

		switch pod.Status.Phase {
		case corev1.PodSucceeded:
			return ExitResult{ExitCode: 0}, nil

		case corev1.PodFailed:
			exitCode := -1
			var errMsg error
			if len(pod.Status.ContainerStatuses) > 0 {
				cs := pod.Status.ContainerStatuses[0]
				if cs.State.Terminated != nil {
					exitCode = int(cs.State.Terminated.ExitCode)
					if cs.State.Terminated.Reason != "" {
						errMsg = fmt.Errorf("%s", cs.State.Terminated.Reason)
					}
				}
			}
			return ExitResult{ExitCode: exitCode, Error: errMsg}, nil
		}
	}

	// Context cancelled
	return ExitResult{ExitCode: -1, Error: ctx.Err()}, ctx.Err()
}

// waitForPod waits for the job's pod to be created and returns its name.
func (h *KubernetesHandle) waitForPod(ctx context.Context) (string, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			pods, err := h.clientset.CoreV1().Pods(h.namespace).List(ctx, metav1.ListOptions{
				LabelSelector: fmt.Sprintf("job-name=%s", h.jobName),
			})
			if err != nil {
				return "", err
			}
			if len(pods.Items) > 0 {
				return pods.Items[0].Name, nil
			}
		}
	}
}

// Stop deletes the Kubernetes Job.
func (h *KubernetesHandle) Stop(ctx context.Context) error {
	// Foreground propagation so pods are cleaned up with the job
	propagation := metav1.DeletePropagationForeground
	err := h.clientset.BatchV1().Jobs(h.namespace).Delete(ctx, h.jobName, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", h.jobName, err)
	}
	log.Printf("Deleted Kubernetes Job %s", h.jobName)
	return nil
}

// StreamLogs returns a reader for the job's pod logs.
func (h *KubernetesHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	if h.podName == "" {
		podName, err := h.waitForPod(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find pod for job %s: %w", h.jobName, err)
		}
		h.podName = podName
	}

	if err := h.waitForContainerReady(ctx); err != nil {
		return nil, err
	}

	req := h.clientset.CoreV1().Pods(h.namespace).GetLogs(h.podName, &corev1.PodLogOptions{
		Container: "workflow",
		Follow:    true,
	})

	return req.Stream(ctx)
}

// waitForContainerReady waits for the container to start (or complete).
func (h *KubernetesHandle) waitForContainerReady(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pod, err := h.clientset.CoreV1().Pods(h.namespace).Get(ctx, h.podName, metav1.GetOptions{})
			if err != nil {
				return err
			}
			switch pod.Status.Phase {
			case corev1.PodRunning, corev1.PodSucceeded, corev1.PodFailed:
				return nil
			}
		}
	}
}
